package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-flow/pkg/botmonitor"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// StageCounter reads persisted metric events.
type StageCounter interface {
	CountByStage(ctx context.Context, tenantID string, since time.Time) (map[string]int64, error)
}

type Monitor struct {
	Monitor *botmonitor.Monitor
	Counter StageCounter // nil when events are not persisted
}

func InitRestMonitor(app fiber.Router, monitor *botmonitor.Monitor, counter StageCounter) Monitor {
	handler := Monitor{Monitor: monitor, Counter: counter}

	group := app.Group("/monitor")
	group.Get("/stats", handler.GetStats)
	group.Get("/tenants/:tenantId", handler.GetTenantCounts)

	return handler
}

func (handler *Monitor) GetStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Monitor stats retrieved",
		Results: handler.Monitor.GetStats(),
	})
}

// GetTenantCounts aggregates persisted events; ?since=24h sets the window.
func (handler *Monitor) GetTenantCounts(c *fiber.Ctx) error {
	if handler.Counter == nil {
		utils.PanicIfNeeded(pkgError.ConfigError("metric persistence is disabled (METRICS_PERSIST=false)"))
	}

	window := 24 * time.Hour
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			utils.PanicIfNeeded(pkgError.ValidationError("since must be a positive duration like 24h"))
		}
		window = d
	}

	counts, err := handler.Counter.CountByStage(c.UserContext(), c.Params("tenantId"), time.Now().Add(-window))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tenant metric counts retrieved",
		Results: counts,
	})
}

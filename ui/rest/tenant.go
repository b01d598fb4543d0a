package rest

import (
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/AzielCF/az-flow/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TenantCache drops cached tenant state. Whoever edits tenants (billing status,
// webhook token, bot config) calls this route so the change applies before the TTL.
type TenantCache interface {
	Invalidate(tenantID string)
}

type Tenant struct {
	Cache TenantCache
}

func InitRestTenant(app fiber.Router, cache TenantCache) Tenant {
	handler := Tenant{Cache: cache}
	app.Delete("/tenants/:tenantId/cache", handler.InvalidateCache)
	return handler
}

func (handler *Tenant) InvalidateCache(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	utils.PanicIfNeeded(validations.ValidateTenantID(tenantID))

	handler.Cache.Invalidate(tenantID)
	logrus.WithField("tenant", tenantID).Info("[TENANT] cache invalidated")

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tenant cache invalidated",
		Results: map[string]string{"tenant_id": tenantID},
	})
}

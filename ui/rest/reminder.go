package rest

import (
	"time"

	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Reminder struct {
	Service domainReminder.IReminderUsecase
}

type runReminderRequest struct {
	At string `json:"at"` // RFC3339, defaults to now
}

func InitRestReminder(app fiber.Router, service domainReminder.IReminderUsecase) Reminder {
	handler := Reminder{Service: service}
	app.Post("/reminders/run", handler.Run)
	return handler
}

// Run executes one scheduler pass on demand. Sends are not deduplicated
// against the hourly pass.
func (handler *Reminder) Run(c *fiber.Ctx) error {
	now := time.Now()

	var request runReminderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError("invalid body: " + err.Error()))
		}
	}
	if request.At != "" {
		at, err := time.Parse(time.RFC3339, request.At)
		if err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError("at must be RFC3339"))
		}
		now = at
	}

	report := handler.Service.RunOnce(c.UserContext(), now)

	message := "Reminder pass finished"
	if report.Skipped {
		message = "Another reminder pass is running"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: report,
	})
}

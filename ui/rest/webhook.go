package rest

import (
	domainWebhook "github.com/AzielCF/az-flow/domains/webhook"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// WebhookPrefix is the route prefix providers deliver to, below the base path.
const WebhookPrefix = "/webhook/"

type Webhook struct {
	Service domainWebhook.IWebhookUsecase
}

func InitRestWebhook(app fiber.Router, service domainWebhook.IWebhookUsecase) Webhook {
	handler := Webhook{Service: service}
	app.Post("/webhook/whatsapp/:tenantId", handler.Receive)
	return handler
}

// Receive always acknowledges. The outcome only reaches the logs, so a
// provider never learns whether a token or tenant was valid.
func (handler *Webhook) Receive(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	body := append([]byte(nil), c.Body()...)

	outcome := handler.Service.Process(c.UserContext(), tenantID, c.Query("token"), body)
	logrus.WithFields(logrus.Fields{
		"tenant":     tenantID,
		"outcome":    outcome,
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	}).Debug("[WEBHOOK] delivery handled")

	return Acknowledge(c)
}

// Acknowledge writes the delivery receipt. It is also what the server answers
// when a provider callback is rejected before reaching the handler.
func Acknowledge(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "received",
	})
}

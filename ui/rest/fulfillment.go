package rest

import (
	domainFulfillment "github.com/AzielCF/az-flow/domains/fulfillment"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// FulfillmentPrefix is the route prefix the intent engine calls, below the base path.
const FulfillmentPrefix = "/fulfillment/"

type Fulfillment struct {
	Service domainFulfillment.IFulfillmentUsecase
}

func InitRestFulfillment(app fiber.Router, service domainFulfillment.IFulfillmentUsecase) Fulfillment {
	handler := Fulfillment{Service: service}
	app.Post("/fulfillment/:tenantId", handler.Fulfill)
	return handler
}

// Fulfill answers in the intent engine's own format; it never returns an error status.
func (handler *Fulfillment) Fulfill(c *fiber.Ctx) error {
	var request domainFulfillment.Request
	if err := c.BodyParser(&request); err != nil {
		logrus.WithError(err).WithField("tenant", c.Params("tenantId")).Warn("[FULFILLMENT] unreadable request")
		return EmptyFulfillment(c)
	}

	return c.JSON(handler.Service.Fulfill(c.UserContext(), c.Params("tenantId"), request))
}

// EmptyFulfillment lets the engine fall back to its own response.
func EmptyFulfillment(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(domainFulfillment.Response{})
}

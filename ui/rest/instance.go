package rest

import (
	domainInstance "github.com/AzielCF/az-flow/domains/instance"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Instance struct {
	Service       domainInstance.IInstanceUsecase
	PublicBaseURL string
}

func InitRestInstance(app fiber.Router, service domainInstance.IInstanceUsecase, publicBaseURL string) Instance {
	handler := Instance{Service: service, PublicBaseURL: publicBaseURL}

	group := app.Group("/instances/:tenantId")
	group.Get("/status", handler.GetStatus)
	group.Get("/connect", handler.Connect)
	group.Post("/webhook", handler.ConfigureWebhook)

	return handler
}

func (handler *Instance) GetStatus(c *fiber.Ctx) error {
	res, err := handler.Service.Status(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Instance status retrieved",
		Results: res,
	})
}

func (handler *Instance) Connect(c *fiber.Ctx) error {
	payload, err := handler.Service.Connect(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	message := "Scan the QR code to connect"
	if payload.Connected {
		message = "Instance already connected"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: payload,
	})
}

func (handler *Instance) ConfigureWebhook(c *fiber.Ctx) error {
	base := handler.PublicBaseURL
	if base == "" {
		base = c.BaseURL()
	}
	res, err := handler.Service.ConfigureWebhook(c.UserContext(), c.Params("tenantId"), base)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Webhook configured",
		Results: res,
	})
}

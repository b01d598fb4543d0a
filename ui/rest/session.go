package rest

import (
	domainSession "github.com/AzielCF/az-flow/domains/session"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Session struct {
	Service domainSession.IHandoffUsecase
}

func InitRestSession(app fiber.Router, service domainSession.IHandoffUsecase) Session {
	handler := Session{Service: service}
	app.Post("/sessions/:tenantId/handoff", handler.Handoff)
	return handler
}

func (handler *Session) Handoff(c *fiber.Ctx) error {
	var request domainSession.HandoffRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid body: " + err.Error()))
	}

	sess, err := handler.Service.SetBotActive(c.UserContext(), c.Params("tenantId"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversation is now " + string(sess.State()),
		Results: sess,
	})
}

package validations

import (
	"context"

	domainSession "github.com/AzielCF/az-flow/domains/session"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateHandoff(ctx context.Context, request domainSession.HandoffRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.RemoteJid, validation.Required),
		validation.Field(&request.BotActive, validation.NotNil.Error("bot_active must be true or false")),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

// ValidateTenantID guards path parameters before they reach storage.
func ValidateTenantID(tenantID string) error {
	if err := validation.Validate(tenantID, validation.Required, validation.Length(1, 64)); err != nil {
		return pkgError.ValidationError("tenant id: " + err.Error())
	}
	return nil
}

package validations

import (
	"context"
	"regexp"

	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var hourSlotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):00$`)

// ValidateSendingRule rejects rules the scheduler cannot match: the send time
// must sit on an hour boundary and week days are 0 (Sunday) to 6. DaysOffset is
// any signed day count.
func ValidateSendingRule(ctx context.Context, rule domainReminder.SendingRule) error {
	err := validation.ValidateStructWithContext(ctx, &rule,
		validation.Field(&rule.ID, validation.Required),
		validation.Field(&rule.TenantID, validation.Required),
		validation.Field(&rule.CategoryID, validation.Required),
		validation.Field(&rule.TemplateID, validation.Required),
		validation.Field(&rule.TimeToSend, validation.Required, validation.Match(hourSlotPattern).Error("must be HH:00")),
		validation.Field(&rule.WeekDays, validation.Required, validation.Each(validation.Min(0), validation.Max(6))),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

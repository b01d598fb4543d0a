package usecase

import (
	"context"
	"fmt"
	"strings"

	domainFulfillment "github.com/AzielCF/az-flow/domains/fulfillment"
	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/AzielCF/az-flow/pkg/msgtemplate"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/sirupsen/logrus"
)

type fulfillmentService struct {
	tenants   tenant.ITenantRepository
	reminders domainReminder.IReminderRepository
	renderer  msgtemplate.Renderer
}

func NewFulfillmentService(tenants tenant.ITenantRepository, reminders domainReminder.IReminderRepository, renderer msgtemplate.Renderer) domainFulfillment.IFulfillmentUsecase {
	return &fulfillmentService{tenants: tenants, reminders: reminders, renderer: renderer}
}

// Fulfill answers the intent engine's webhook. The reply is the tenant template
// named after the matched intent, rendered for the customer behind the session;
// otherwise whatever text the engine already prepared.
func (s *fulfillmentService) Fulfill(ctx context.Context, tenantID string, req domainFulfillment.Request) domainFulfillment.Response {
	fallback := domainFulfillment.Response{FulfillmentText: req.QueryResult.FulfillmentText}
	intent := strings.TrimSpace(req.QueryResult.Intent.DisplayName)
	log := logrus.WithFields(logrus.Fields{"tenant": tenantID, "intent": intent})

	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		log.WithError(err).Debug("[FULFILLMENT] tenant unavailable")
		return fallback
	}

	phone := SessionPhone(req.Session)
	if phone == "" || intent == "" {
		return fallback
	}

	customer, err := s.reminders.FindCustomerByPhone(ctx, tenantID, phone)
	if err != nil {
		log.WithError(err).Debug("[FULFILLMENT] no customer for session")
		return fallback
	}

	tpl, err := s.reminders.GetTemplateByName(ctx, tenantID, intent)
	if err != nil {
		log.WithError(err).Debug("[FULFILLMENT] no template for intent")
		return fallback
	}

	text := s.renderer.Render(tpl.Content, domainReminder.CustomerContext{Customer: customer, Tenant: t}, parameterValues(req.QueryResult.Parameters))
	log.WithField("customer", customer.ID).Info("[FULFILLMENT] template rendered")
	return domainFulfillment.Response{FulfillmentText: text}
}

// SessionPhone extracts the phone from ".../agent/sessions/<id>". The engine
// adapter uses the digits of the remote JID as session id.
func SessionPhone(sessionPath string) string {
	sessionPath = strings.TrimRight(sessionPath, "/")
	if i := strings.LastIndex(sessionPath, "/"); i >= 0 {
		sessionPath = sessionPath[i+1:]
	}
	return utils.PhoneFromJID(sessionPath)
}

// parameterValues exposes scalar intent parameters as extra placeholders.
func parameterValues(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
			out[k] = val
		case float64, bool, int, int64:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

package usecase

import (
	"context"
	"testing"
	"time"

	domainFulfillment "github.com/AzielCF/az-flow/domains/fulfillment"
	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	"github.com/AzielCF/az-flow/pkg/msgtemplate"
	"github.com/stretchr/testify/assert"
)

func newFulfillmentFixture() (domainFulfillment.IFulfillmentUsecase, *fakeReminders) {
	loc := time.UTC
	reminders := &fakeReminders{
		customers: []domainReminder.Customer{{
			ID: "cu1", TenantID: "t1", CategoryID: "c1", Name: "Maria Souza", Phone: "5511988887777",
			DueDate: time.Date(2026, 10, 22, 12, 0, 0, 0, loc),
			Plan:    &domainReminder.Plan{ID: "p1", Name: "Mensal", Value: 100, Discount: 10},
		}},
		templates: map[string]domainReminder.MessageTemplate{
			"tpl-saldo": {ID: "tpl-saldo", TenantID: "t1", Name: "consultar_saldo", Content: "{{customer_first_name}}, seu plano {{plan_name}} custa {{plan_total}}. Pedido {{pedido}}."},
		},
	}
	renderer := msgtemplate.New(loc)
	renderer.Now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, loc) }
	return NewFulfillmentService(newFakeTenants(), reminders, renderer), reminders
}

func fulfillmentRequest(session, intent, engineText string) domainFulfillment.Request {
	return domainFulfillment.Request{
		ResponseID: "resp-1",
		Session:    session,
		QueryResult: domainFulfillment.QueryResult{
			QueryText:       "qual meu saldo",
			FulfillmentText: engineText,
			Parameters:      map[string]any{"pedido": "A-77", "vazio": "", "qtd": float64(2)},
			Intent:          domainFulfillment.Intent{Name: "projects/p/agent/intents/1", DisplayName: intent},
		},
	}
}

func TestFulfillRendersTemplateNamedAfterIntent(t *testing.T) {
	svc, _ := newFulfillmentFixture()

	resp := svc.Fulfill(context.Background(), "t1", fulfillmentRequest("projects/p/agent/sessions/5511988887777", "consultar_saldo", "texto do agente"))
	assert.Equal(t, "Maria, seu plano Mensal custa R$ 90,00. Pedido A-77.", resp.FulfillmentText)
}

func TestFulfillFallsBackToEngineText(t *testing.T) {
	svc, _ := newFulfillmentFixture()
	ctx := context.Background()

	cases := map[string]domainFulfillment.Request{
		"unknown tenant":   fulfillmentRequest("projects/p/agent/sessions/5511988887777", "consultar_saldo", "texto do agente"),
		"unknown customer": fulfillmentRequest("projects/p/agent/sessions/5521900000000", "consultar_saldo", "texto do agente"),
		"no template":      fulfillmentRequest("projects/p/agent/sessions/5511988887777", "saudacao", "texto do agente"),
		"no session":       fulfillmentRequest("", "consultar_saldo", "texto do agente"),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			tenantID := "t1"
			if name == "unknown tenant" {
				tenantID = "ghost"
			}
			assert.Equal(t, "texto do agente", svc.Fulfill(ctx, tenantID, req).FulfillmentText)
		})
	}

	assert.Empty(t, svc.Fulfill(ctx, "t1", fulfillmentRequest("projects/p/agent/sessions/1", "saudacao", "")).FulfillmentText)
}

func TestSessionPhone(t *testing.T) {
	assert.Equal(t, "5511988887777", SessionPhone("projects/p/agent/sessions/5511988887777"))
	assert.Equal(t, "5511988887777", SessionPhone("projects/p/agent/sessions/5511988887777@s.whatsapp.net/"))
	assert.Equal(t, "", SessionPhone(""))
}

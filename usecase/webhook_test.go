package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	domainWebhook "github.com/AzielCF/az-flow/domains/webhook"
	"github.com/AzielCF/az-flow/normalizer"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customerJID = "5511988887777@s.whatsapp.net"

func evolutionText(jid, text string, fromMe bool) []byte {
	return []byte(fmt.Sprintf(`{"event":"messages.upsert","instance":"forte","data":{"key":{"remoteJid":%q,"fromMe":%t,"id":"MSG1"},"pushName":"Maria","message":{"conversation":%q}}}`, jid, fromMe, text))
}

type webhookFixture struct {
	svc      domainWebhook.IWebhookUsecase
	tenants  *fakeTenants
	sessions *repository.MemorySessionStore
	engine   *fakeEngine
	sender   *fakeSender
	monitor  *botmonitor.Monitor
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		tenants:  newFakeTenants(),
		sessions: repository.NewMemorySessionStore(),
		engine:   &fakeEngine{replies: []message.ReplyFragment{message.Text("Olá! Como posso ajudar?")}},
		sender:   &fakeSender{},
		monitor:  botmonitor.New(20, 0),
	}
	t.Cleanup(f.monitor.Close)
	f.svc = NewWebhookService(f.tenants, normalizer.New(), f.sessions, f.engine, f.sender, f.monitor)
	return f
}

func TestWebhookProcessAnswersThroughEngine(t *testing.T) {
	f := newWebhookFixture(t)

	out := f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi", false))
	require.Equal(t, domainWebhook.OutcomeProcessed, out)

	assert.Equal(t, []string{"oi"}, f.engine.calls)
	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, customerJID, sent[0].To)
	assert.Equal(t, "forte", sent[0].Instance)
	assert.Equal(t, "Olá! Como posso ajudar?", sent[0].Text)

	sess, ok := f.sessions.Get("t1", customerJID)
	require.True(t, ok, "session must be created on first message")
	assert.True(t, sess.IsBotActive)
	assert.False(t, sess.LastInteraction.IsZero())

	assert.Equal(t, int64(1), f.monitor.GetStats().TotalInbound)
}

func TestWebhookTokenPrefixCheck(t *testing.T) {
	cases := map[string]domainWebhook.Outcome{
		"ABC123":                 domainWebhook.OutcomeProcessed,
		"ABC123/messages-upsert": domainWebhook.OutcomeProcessed,
		"ABC":                    domainWebhook.OutcomeProcessed, // prefijo del token guardado
		"ABC999":                 domainWebhook.OutcomeAuthFailed,
		"ABC1234":                domainWebhook.OutcomeAuthFailed,
		"":                       domainWebhook.OutcomeAuthFailed,
		"/messages-upsert":       domainWebhook.OutcomeAuthFailed,
	}
	for token, want := range cases {
		t.Run(token, func(t *testing.T) {
			f := newWebhookFixture(t)
			got := f.svc.Process(context.Background(), "t1", token, evolutionText(customerJID, "oi", false))
			assert.Equal(t, want, got)
			if want != domainWebhook.OutcomeProcessed {
				assert.Zero(t, f.engine.Calls())
				assert.Empty(t, f.sender.Sent())
			}
		})
	}
}

func TestWebhookHumanModeSkipsEngineAndSender(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.sessions.SetBotActive(ctx, "t1", customerJID, false)
	require.NoError(t, err)

	out := f.svc.Process(ctx, "t1", "ABC123", evolutionText(customerJID, "quero falar com atendente", false))
	assert.Equal(t, domainWebhook.OutcomeHumanActive, out)
	assert.Zero(t, f.engine.Calls())
	assert.Empty(t, f.sender.Sent())

	sess, _ := f.sessions.Get("t1", customerJID)
	assert.False(t, sess.LastInteraction.IsZero(), "human-mode messages still touch the session")

	// de vuelta al bot
	_, err = f.sessions.SetBotActive(ctx, "t1", customerJID, true)
	require.NoError(t, err)
	out = f.svc.Process(ctx, "t1", "ABC123", evolutionText(customerJID, "oi de novo", false))
	assert.Equal(t, domainWebhook.OutcomeProcessed, out)
	assert.Equal(t, 1, f.engine.Calls())
}

func TestWebhookStopsOnTenantState(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown tenant", func(t *testing.T) {
		f := newWebhookFixture(t)
		assert.Equal(t, domainWebhook.OutcomeUnknownTenant, f.svc.Process(ctx, "nope", "ABC123", evolutionText(customerJID, "oi", false)))
	})

	t.Run("missing instance", func(t *testing.T) {
		f := newWebhookFixture(t)
		delete(f.tenants.instances, "t1")
		assert.Equal(t, domainWebhook.OutcomeConfigIncomplete, f.svc.Process(ctx, "t1", "ABC123", evolutionText(customerJID, "oi", false)))
	})

	t.Run("missing bot config", func(t *testing.T) {
		f := newWebhookFixture(t)
		delete(f.tenants.configs, "t1")
		assert.Equal(t, domainWebhook.OutcomeConfigIncomplete, f.svc.Process(ctx, "t1", "ABC123", evolutionText(customerJID, "oi", false)))
	})

	t.Run("billing canceled", func(t *testing.T) {
		f := newWebhookFixture(t)
		tn := f.tenants.tenants["t1"]
		tn.Status = tenant.StatusCanceled
		f.tenants.tenants["t1"] = tn
		assert.Equal(t, domainWebhook.OutcomeConfigIncomplete, f.svc.Process(ctx, "t1", "ABC123", evolutionText(customerJID, "oi", false)))
		assert.Zero(t, f.engine.Calls())
	})
}

func TestWebhookIgnoresNonConversationalPayloads(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		body []byte
		want domainWebhook.Outcome
	}{
		{"group", evolutionText("120363025555555555@g.us", "oi", false), domainWebhook.OutcomeIgnoredGroup},
		{"self echo", evolutionText(customerJID, "resposta", true), domainWebhook.OutcomeIgnoredSelfEcho},
		{"status update", []byte(`{"event":"messages.update","data":{"remoteJid":"5511@s.whatsapp.net","status":"READ"}}`), domainWebhook.OutcomeIgnoredPayload},
		{"not json", []byte(`<html>`), domainWebhook.OutcomeIgnoredPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWebhookFixture(t)
			assert.Equal(t, tc.want, f.svc.Process(ctx, "t1", "ABC123", tc.body))
			assert.Zero(t, f.engine.Calls())
			_, created := f.sessions.Get("t1", customerJID)
			assert.False(t, created)
		})
	}
}

func TestWebhookEngineFailure(t *testing.T) {
	f := newWebhookFixture(t)
	f.engine.err = pkgError.EngineError("dialogflow unreachable")

	out := f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi", false))
	assert.Equal(t, domainWebhook.OutcomeEngineFailed, out)
	assert.Empty(t, f.sender.Sent())

	stats := f.monitor.GetStats()
	assert.Equal(t, int64(1), stats.TotalInbound)
	assert.Equal(t, int64(1), stats.TotalErrors)
}

func TestWebhookSendsEveryFragmentInOrder(t *testing.T) {
	f := newWebhookFixture(t)
	f.engine.replies = []message.ReplyFragment{
		message.Text("Seu boleto vence amanhã."),
		message.Text("   "),
		{Kind: message.FragmentImage, MediaURL: "https://cdn/boleto.png", Content: "boleto"},
		message.Text("Algo mais?"),
	}

	out := f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "boleto", false))
	require.Equal(t, domainWebhook.OutcomeProcessed, out)

	sent := f.sender.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "Seu boleto vence amanhã.", sent[0].Text)
	assert.Equal(t, message.FragmentImage, sent[1].Kind)
	assert.Equal(t, "Algo mais?", sent[2].Text)
}

func TestWebhookEmptyReplyStillProcessed(t *testing.T) {
	f := newWebhookFixture(t)
	f.engine.replies = nil

	out := f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi", false))
	assert.Equal(t, domainWebhook.OutcomeProcessed, out)
	assert.Empty(t, f.sender.Sent())
}

// Un mensaje procesado genera exactamente un evento inbound y uno outbound,
// sin importar cuántos fragmentos tenga la respuesta.
func TestWebhookRecordsOneOutboundEventPerMessage(t *testing.T) {
	cases := map[string][]message.ReplyFragment{
		"sin fragmentos": nil,
		"tres fragmentos": {
			message.Text("Oi Maria!"),
			message.Text("Seu plano vence dia 22."),
			message.Text("Posso ajudar em algo mais?"),
		},
	}
	for name, replies := range cases {
		t.Run(name, func(t *testing.T) {
			f := newWebhookFixture(t)
			f.engine.replies = replies

			out := f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi", false))
			require.Equal(t, domainWebhook.OutcomeProcessed, out)
			assert.Len(t, f.sender.Sent(), len(replies))

			stats := f.monitor.GetStats()
			assert.EqualValues(t, 1, stats.TotalInbound)
			assert.EqualValues(t, 1, stats.TotalOutbound)

			var outbound []botmonitor.Event
			for _, ev := range stats.RecentEvents {
				if ev.Stage == botmonitor.StageOutbound {
					outbound = append(outbound, ev)
				}
			}
			require.Len(t, outbound, 1)
			assert.Equal(t, fmt.Sprint(len(replies)), outbound[0].Metadata["sent"])
			assert.Equal(t, "0", outbound[0].Metadata["failed"])
		})
	}
}

func TestWebhookOutboundEventCountsFailedFragments(t *testing.T) {
	f := newWebhookFixture(t)
	f.sender.fail = map[string]bool{customerJID: true}

	out := f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi", false))
	require.Equal(t, domainWebhook.OutcomeProcessed, out)

	stats := f.monitor.GetStats()
	assert.EqualValues(t, 1, stats.TotalOutbound)
	assert.EqualValues(t, 1, stats.TotalErrors)
	last := stats.RecentEvents[len(stats.RecentEvents)-1]
	assert.Equal(t, botmonitor.StageOutbound, last.Stage)
	assert.Equal(t, botmonitor.StatusError, last.Status)
	assert.Equal(t, "1", last.Metadata["failed"])
}

func TestWebhookRecoversEnginePanic(t *testing.T) {
	f := newWebhookFixture(t)
	f.engine.panics = "nil map in sdk"

	var out domainWebhook.Outcome
	require.NotPanics(t, func() {
		out = f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi", false))
	})
	assert.Equal(t, domainWebhook.OutcomeInternalFailure, out)
	assert.Empty(t, f.sender.Sent())

	// la sesión ya existía antes del pánico y el siguiente mensaje sigue funcionando
	f.engine.panics = nil
	out = f.svc.Process(context.Background(), "t1", "ABC123", evolutionText(customerJID, "oi de novo", false))
	assert.Equal(t, domainWebhook.OutcomeProcessed, out)
}

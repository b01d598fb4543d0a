package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/session"
	"github.com/AzielCF/az-flow/domains/tenant"
	domainWebhook "github.com/AzielCF/az-flow/domains/webhook"
	"github.com/AzielCF/az-flow/normalizer"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"github.com/sirupsen/logrus"
)

// ReplyEngine produces the bot's answer for one inbound text.
type ReplyEngine interface {
	Respond(ctx context.Context, cfg tenant.BotConfig, sess session.ChatSession, text string) ([]message.ReplyFragment, error)
}

// MessageSender delivers outbound messages through a tenant's WhatsApp instance.
type MessageSender interface {
	SendText(ctx context.Context, inst tenant.WhatsAppInstance, remoteJid, text string) error
	SendFragment(ctx context.Context, inst tenant.WhatsAppInstance, remoteJid string, frag message.ReplyFragment) error
}

// PayloadNormalizer turns a provider webhook body into an InboundMessage.
type PayloadNormalizer interface {
	Normalize(kind tenant.Provider, body []byte) (message.InboundMessage, error)
}

type webhookService struct {
	tenants    tenant.ITenantRepository
	normalizer PayloadNormalizer
	sessions   session.ISessionStore
	engine     ReplyEngine
	sender     MessageSender
	monitor    *botmonitor.Monitor
}

func NewWebhookService(
	tenants tenant.ITenantRepository,
	norm PayloadNormalizer,
	sessions session.ISessionStore,
	engine ReplyEngine,
	sender MessageSender,
	monitor *botmonitor.Monitor,
) domainWebhook.IWebhookUsecase {
	return &webhookService{
		tenants:    tenants,
		normalizer: norm,
		sessions:   sessions,
		engine:     engine,
		sender:     sender,
		monitor:    monitor,
	}
}

// Process handles one webhook delivery. Every path ends in an Outcome; the
// caller acknowledges the delivery regardless of which one.
func (s *webhookService) Process(ctx context.Context, tenantID, rawToken string, body []byte) (outcome domainWebhook.Outcome) {
	log := logrus.WithField("tenant", tenantID)

	// engine SDKs and provider parsers are third-party code; a panic there still gets acknowledged
	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("%v", r)).Error("[WEBHOOK] panic while processing delivery")
			outcome = domainWebhook.OutcomeInternalFailure
		}
	}()

	token, _ := normalizer.SplitToken(rawToken)

	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, tenant.ErrTenantNotFound) {
			log.WithError(err).Error("[WEBHOOK] tenant lookup failed")
			return domainWebhook.OutcomePersistenceFailed
		}
		log.Debug("[WEBHOOK] unknown tenant")
		return domainWebhook.OutcomeUnknownTenant
	}

	// The stored token only has to start with the presented one.
	if token == "" || t.WebhookToken == "" || !strings.HasPrefix(t.WebhookToken, token) {
		log.Warn("[WEBHOOK] token mismatch")
		return domainWebhook.OutcomeAuthFailed
	}

	if !t.IsBillingActive() {
		log.WithField("status", t.Status).Debug("[WEBHOOK] tenant billing inactive")
		return domainWebhook.OutcomeConfigIncomplete
	}
	cfg, err := s.tenants.GetBotConfig(ctx, tenantID)
	if err != nil {
		log.WithError(err).Debug("[WEBHOOK] bot config unavailable")
		return domainWebhook.OutcomeConfigIncomplete
	}
	inst, err := s.tenants.GetInstance(ctx, tenantID)
	if err != nil {
		log.WithError(err).Debug("[WEBHOOK] whatsapp instance unavailable")
		return domainWebhook.OutcomeConfigIncomplete
	}

	msg, err := s.normalizer.Normalize(inst.Provider, body)
	if err != nil {
		if ign, ok := normalizer.AsIgnored(err); ok {
			log.WithFields(logrus.Fields{"reason": ign.Reason, "detail": ign.Detail}).Debug("[WEBHOOK] payload ignored")
			switch ign.Reason {
			case normalizer.ReasonGroup:
				return domainWebhook.OutcomeIgnoredGroup
			case normalizer.ReasonSelfEcho:
				return domainWebhook.OutcomeIgnoredSelfEcho
			}
			return domainWebhook.OutcomeIgnoredPayload
		}
		log.WithError(err).Warn("[WEBHOOK] payload rejected")
		return domainWebhook.OutcomeIgnoredPayload
	}
	if msg.IsSelfEcho {
		return domainWebhook.OutcomeIgnoredSelfEcho
	}
	if msg.IsGroup {
		return domainWebhook.OutcomeIgnoredGroup
	}

	log = log.WithField("jid", msg.RemoteJid)
	started := time.Now()

	sess, err := s.sessions.GetOrCreate(ctx, tenantID, msg.RemoteJid)
	if err != nil {
		log.WithError(err).Error("[SESSION] get or create failed")
		s.recordInbound(tenantID, msg, inst.Provider, started, err, "")
		return domainWebhook.OutcomePersistenceFailed
	}
	if err := s.sessions.Touch(ctx, sess.ID); err != nil {
		log.WithError(err).Warn("[SESSION] touch failed")
	}

	if !sess.IsBotActive {
		log.Debug("[WEBHOOK] human attending, bot skipped")
		s.recordInbound(tenantID, msg, inst.Provider, started, nil, string(session.StateHumanActive))
		return domainWebhook.OutcomeHumanActive
	}

	fragments, err := s.engine.Respond(ctx, cfg, sess, msg.Text)
	if err != nil {
		log.WithError(err).Error("[WEBHOOK] engine failed")
		s.recordInbound(tenantID, msg, inst.Provider, started, err, "")
		return domainWebhook.OutcomeEngineFailed
	}

	s.recordInbound(tenantID, msg, inst.Provider, started, nil, string(session.StateBotActive))

	replied := time.Now()
	sent, failed := 0, 0
	for i, frag := range fragments {
		if strings.TrimSpace(frag.Content) == "" && frag.MediaURL == "" {
			continue
		}
		if err := s.sender.SendFragment(ctx, inst, msg.RemoteJid, frag); err != nil {
			failed++
			log.WithError(err).WithFields(logrus.Fields{"fragment": i, "kind": frag.Kind}).Error("[WEBHOOK] fragment not delivered")
			continue
		}
		sent++
	}
	log.WithFields(logrus.Fields{"fragments": len(fragments), "sent": sent, "failed": failed}).Info("[WEBHOOK] message processed")

	s.recordOutbound(tenantID, msg, inst.Provider, replied, len(fragments), sent, failed)
	return domainWebhook.OutcomeProcessed
}

// recordOutbound writes the single reply event of a processed message; per-send
// events are recorded by the sender under the delivery stage.
func (s *webhookService) recordOutbound(tenantID string, msg message.InboundMessage, provider tenant.Provider, started time.Time, fragments, sent, failed int) {
	if s.monitor == nil {
		return
	}
	ev := botmonitor.Event{
		TenantID: tenantID,
		ChatJID:  msg.RemoteJid,
		Provider: string(provider),
		Stage:    botmonitor.StageOutbound,
		Kind:     "reply",
		Status:   botmonitor.StatusOK,
		Metadata: map[string]string{
			"fragments": strconv.Itoa(fragments),
			"sent":      strconv.Itoa(sent),
			"failed":    strconv.Itoa(failed),
		},
		DurationMs: time.Since(started).Milliseconds(),
	}
	if failed > 0 && sent == 0 {
		ev.Status = botmonitor.StatusError
		ev.Error = fmt.Sprintf("%d fragments not delivered", failed)
	}
	s.monitor.Record(ev)
}

func (s *webhookService) recordInbound(tenantID string, msg message.InboundMessage, provider tenant.Provider, started time.Time, err error, state string) {
	if s.monitor == nil {
		return
	}
	ev := botmonitor.Event{
		TenantID:   tenantID,
		ChatJID:    msg.RemoteJid,
		Provider:   string(provider),
		Stage:      botmonitor.StageInbound,
		Kind:       string(message.FragmentText),
		Status:     botmonitor.StatusOK,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if state != "" {
		ev.Metadata = map[string]string{"state": state}
	}
	if err != nil {
		ev.Status = botmonitor.StatusError
		ev.Error = err.Error()
	}
	s.monitor.Record(ev)
}

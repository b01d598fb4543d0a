package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"github.com/AzielCF/az-flow/pkg/crypto"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one provider call when none is configured.
const DefaultTimeout = 15 * time.Second

// Sender is the single outbound entry point. It resolves the instance's provider,
// decrypts its token and bounds every call; it never retries.
type Sender struct {
	http      *resty.Client
	mu        sync.RWMutex
	providers map[tenant.Provider]Provider
	box       *crypto.Box
	monitor   *botmonitor.Monitor
	timeout   time.Duration
}

func NewSender(timeout time.Duration, box *crypto.Box, monitor *botmonitor.Monitor) *Sender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if box == nil {
		box = crypto.Default()
	}
	s := &Sender{
		http:      resty.New().SetHeader("Content-Type", "application/json"),
		providers: make(map[tenant.Provider]Provider),
		box:       box,
		monitor:   monitor,
		timeout:   timeout,
	}
	s.Register(Evolution{})
	s.Register(Uazapi{})
	s.Register(Wuzapi{})
	return s
}

func (s *Sender) Register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Kind()] = p
}

func (s *Sender) resolve(inst tenant.WhatsAppInstance) (Provider, *Conn, error) {
	s.mu.RLock()
	p, ok := s.providers[inst.Provider]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, pkgError.SendError(fmt.Sprintf("provider %q not supported", inst.Provider))
	}
	if inst.BaseURL == "" {
		return nil, nil, pkgError.SendError("instance has no base url")
	}
	token, err := s.box.Decrypt(inst.Token)
	if err != nil {
		return nil, nil, pkgError.SendError(fmt.Sprintf("decrypt instance token: %v", err))
	}
	return p, &Conn{http: s.http, BaseURL: inst.BaseURL, Token: token, InstanceID: inst.InstanceID}, nil
}

// SendText delivers text to the phone behind remoteJid.
func (s *Sender) SendText(ctx context.Context, inst tenant.WhatsAppInstance, remoteJid, text string) error {
	return s.send(ctx, inst, remoteJid, string(message.FragmentText), func(ctx context.Context, p Provider, c *Conn, number string) error {
		return p.SendText(ctx, c, number, text)
	})
}

// SendMedia delivers a media URL with an optional caption.
func (s *Sender) SendMedia(ctx context.Context, inst tenant.WhatsAppInstance, remoteJid, url string, kind message.FragmentKind, caption string) error {
	if !kind.IsMedia() {
		return pkgError.SendError(fmt.Sprintf("fragment kind %q is not media", kind))
	}
	return s.send(ctx, inst, remoteJid, string(kind), func(ctx context.Context, p Provider, c *Conn, number string) error {
		return p.SendMedia(ctx, c, number, url, kind, caption)
	})
}

// SendFragment routes a reply fragment to SendText or SendMedia.
func (s *Sender) SendFragment(ctx context.Context, inst tenant.WhatsAppInstance, remoteJid string, frag message.ReplyFragment) error {
	if frag.Kind.IsMedia() && frag.MediaURL != "" {
		return s.SendMedia(ctx, inst, remoteJid, frag.MediaURL, frag.Kind, frag.Content)
	}
	return s.SendText(ctx, inst, remoteJid, frag.Content)
}

func (s *Sender) send(ctx context.Context, inst tenant.WhatsAppInstance, remoteJid, kind string, call func(context.Context, Provider, *Conn, string) error) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = pkgError.SendError(fmt.Sprintf("panic while sending: %v", r))
		}
		s.record(inst, remoteJid, kind, started, err)
	}()

	number := utils.PhoneFromJID(remoteJid)
	if number == "" {
		return pkgError.SendError(fmt.Sprintf("remote jid %q has no phone number", remoteJid))
	}

	p, c, err := s.resolve(inst)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := call(callCtx, p, c, number); err != nil {
		logrus.WithFields(logrus.Fields{
			"tenant":   inst.TenantID,
			"provider": inst.Provider,
			"number":   number,
			"kind":     kind,
		}).WithError(err).Warn("[SENDER] send failed")
		return pkgError.SendError(err.Error())
	}
	return nil
}

// GetConnectData walks the provider's candidate endpoints in order and returns
// the first usable payload, or nil when all of them fail.
func (s *Sender) GetConnectData(ctx context.Context, inst tenant.WhatsAppInstance) *ConnectionPayload {
	p, c, err := s.resolve(inst)
	if err != nil {
		logrus.WithError(err).WithField("tenant", inst.TenantID).Warn("[SENDER] connect data unavailable")
		return nil
	}

	for _, attempt := range p.ConnectAttempts() {
		payload, err := s.tryConnect(ctx, attempt, c)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"tenant":   inst.TenantID,
				"provider": inst.Provider,
				"endpoint": attempt.Name,
			}).WithError(err).Debug("[SENDER] connect candidate failed")
			continue
		}
		if payload, ok := finishPayload(payload); ok {
			payload.Source = attempt.Name
			return payload
		}
	}
	return nil
}

func (s *Sender) tryConnect(ctx context.Context, attempt ConnectAttempt, c *Conn) (payload *ConnectionPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return attempt.Run(callCtx, c)
}

// GetStatus probes the provider. Any failure reads as disconnected.
func (s *Sender) GetStatus(ctx context.Context, inst tenant.WhatsAppInstance) (status tenant.InstanceStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = tenant.InstanceDisconnected
		}
	}()

	p, c, err := s.resolve(inst)
	if err != nil {
		return tenant.InstanceDisconnected
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err = p.Status(callCtx, c)
	if err != nil {
		logrus.WithError(err).WithField("tenant", inst.TenantID).Debug("[SENDER] status probe failed")
		return tenant.InstanceDisconnected
	}
	return status
}

// SetWebhook points the provider instance at url.
func (s *Sender) SetWebhook(ctx context.Context, inst tenant.WhatsAppInstance, url string) error {
	p, c, err := s.resolve(inst)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p.SetWebhook(callCtx, c, url); err != nil {
		return pkgError.SendError(err.Error())
	}
	return nil
}

func (s *Sender) record(inst tenant.WhatsAppInstance, remoteJid, kind string, started time.Time, err error) {
	if s.monitor == nil {
		return
	}
	ev := botmonitor.Event{
		TenantID:   inst.TenantID,
		ChatJID:    remoteJid,
		Provider:   string(inst.Provider),
		Stage:      botmonitor.StageDelivery,
		Kind:       kind,
		Status:     botmonitor.StatusOK,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		ev.Status = botmonitor.StatusError
		ev.Error = err.Error()
	}
	s.monitor.Record(ev)
}

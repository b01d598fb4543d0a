package botengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/session"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"github.com/AzielCF/az-flow/pkg/crypto"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one engine round trip when none is configured.
const DefaultTimeout = 20 * time.Second

// Engine dispatches a turn to the provider registered for the tenant's engine type.
type Engine struct {
	mu        sync.RWMutex
	providers map[tenant.EngineType]Provider
	sessions  session.ISessionStore
	monitor   *botmonitor.Monitor
	box       *crypto.Box
	timeout   time.Duration
}

func NewEngine(sessions session.ISessionStore, monitor *botmonitor.Monitor, box *crypto.Box, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if box == nil {
		box = crypto.Default()
	}
	return &Engine{
		providers: make(map[tenant.EngineType]Provider),
		sessions:  sessions,
		monitor:   monitor,
		box:       box,
		timeout:   timeout,
	}
}

func (e *Engine) RegisterProvider(kind tenant.EngineType, p Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[kind] = p
}

func (e *Engine) provider(kind tenant.EngineType) (Provider, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.providers[kind]
	return p, ok
}

// Respond runs one turn for sess. An empty fragment list is a valid answer.
func (e *Engine) Respond(ctx context.Context, cfg tenant.BotConfig, sess session.ChatSession, text string) ([]message.ReplyFragment, error) {
	started := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"tenant": cfg.TenantID,
		"jid":    sess.RemoteJid,
		"engine": cfg.EngineType,
	})

	p, ok := e.provider(cfg.EngineType)
	if !ok {
		err := pkgError.EngineError(fmt.Sprintf("engine %q not registered", cfg.EngineType))
		e.record(cfg, sess, started, err)
		return nil, err
	}

	creds, err := e.box.Decrypt(cfg.Credentials)
	if err != nil {
		err = pkgError.EngineError(fmt.Sprintf("decrypt credentials: %v", err))
		e.record(cfg, sess, started, err)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := p.Respond(callCtx, Request{
		TenantID:          cfg.TenantID,
		RemoteJid:         sess.RemoteJid,
		Text:              text,
		Language:          cfg.Language,
		ContinuationToken: sess.BotSessionID,
		Credentials:       creds,
	})
	if err != nil {
		var engineErr pkgError.EngineError
		if !errors.As(err, &engineErr) {
			err = pkgError.EngineError(err.Error())
		}
		e.record(cfg, sess, started, err)
		return nil, err
	}

	if reply.ContinuationToken != "" && reply.ContinuationToken != sess.BotSessionID && e.sessions != nil {
		if err := e.sessions.SetContinuationToken(ctx, cfg.TenantID, sess.RemoteJid, reply.ContinuationToken); err != nil {
			// the reply is still delivered; the next turn starts a new flow
			log.WithError(err).Warn("[ENGINE] failed to persist continuation token")
		}
	}

	log.WithField("fragments", len(reply.Fragments)).Debug("[ENGINE] reply ready")
	e.record(cfg, sess, started, nil)
	return reply.Fragments, nil
}

func (e *Engine) record(cfg tenant.BotConfig, sess session.ChatSession, started time.Time, err error) {
	if e.monitor == nil {
		return
	}
	ev := botmonitor.Event{
		TenantID:   cfg.TenantID,
		ChatJID:    sess.RemoteJid,
		Provider:   string(cfg.EngineType),
		Stage:      botmonitor.StageEngine,
		Kind:       string(cfg.EngineType),
		Status:     botmonitor.StatusOK,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		ev.Status = botmonitor.StatusError
		ev.Error = err.Error()
	}
	e.monitor.Record(ev)
}

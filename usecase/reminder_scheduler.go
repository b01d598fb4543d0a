package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/msgtemplate"
	"github.com/AzielCF/az-flow/pkg/timeutils"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/AzielCF/az-flow/validations"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SchedulerOptions tunes a ReminderScheduler. Zero values are usable.
type SchedulerOptions struct {
	Location  *time.Location
	SendRate  float64 // sends per second per tenant, 0 disables pacing
	SendBurst int
	Audit     domainReminder.IDispatchLogRepository
	Monitor   *botmonitor.Monitor
	Interval  time.Duration
}

// ReminderScheduler fires SendingRules on hour slots. It is Idle between
// ticks and Running during a pass; a tick that lands on a running pass is skipped.
type ReminderScheduler struct {
	reminders domainReminder.IReminderRepository
	tenants   tenant.ITenantRepository
	sender    MessageSender
	audit     domainReminder.IDispatchLogRepository
	monitor   *botmonitor.Monitor
	renderer  msgtemplate.Renderer
	location  *time.Location
	interval  time.Duration

	sendRate  rate.Limit
	sendBurst int
	limMu     sync.Mutex
	limiters  map[string]*rate.Limiter

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReminderScheduler(
	reminders domainReminder.IReminderRepository,
	tenants tenant.ITenantRepository,
	sender MessageSender,
	opts SchedulerOptions,
) *ReminderScheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}

	return &ReminderScheduler{
		reminders: reminders,
		tenants:   tenants,
		sender:    sender,
		audit:     opts.Audit,
		monitor:   opts.Monitor,
		renderer:  msgtemplate.New(loc),
		location:  loc,
		interval:  interval,
		sendRate:  limit,
		sendBurst: burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

var _ domainReminder.IReminderUsecase = (*ReminderScheduler)(nil)

// Start runs a pass at every hour boundary until ctx is cancelled or Stop is called.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	logrus.WithFields(logrus.Fields{
		"location": s.location.String(),
		"next":     timeutils.NextHour(time.Now().In(s.location)).Format(time.RFC3339),
	}).Info("[SCHEDULER] reminder scheduler started")
}

// Stop cancels the timer and waits for an in-flight pass to return.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logrus.Info("[SCHEDULER] reminder scheduler stopped")
}

func (s *ReminderScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	wait := time.Until(timeutils.NextHour(time.Now()))
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case now := <-timer.C:
		s.RunOnce(ctx, now)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.RunOnce(ctx, now)
		}
	}
}

// RunOnce executes one pass for the hour slot containing now.
func (s *ReminderScheduler) RunOnce(ctx context.Context, now time.Time) domainReminder.PassReport {
	now = now.In(s.location)
	report := domainReminder.PassReport{
		Slot:      timeutils.HourSlot(now),
		Weekday:   int(now.Weekday()),
		StartedAt: time.Now(),
	}

	if !s.running.CompareAndSwap(false, true) {
		logrus.WithField("slot", report.Slot).Warn("[SCHEDULER] previous pass still running, skipping")
		report.Skipped = true
		report.FinishedAt = time.Now()
		return report
	}
	defer s.running.Store(false)

	log := logrus.WithFields(logrus.Fields{"slot": report.Slot, "weekday": report.Weekday})

	rules, err := s.reminders.ListRulesForSlot(ctx, report.Slot)
	if err != nil {
		log.WithError(err).Error("[SCHEDULER] failed to load rules")
		report.FinishedAt = time.Now()
		return report
	}

	pass := &passState{
		tenants:   make(map[string]*tenantTarget),
		templates: make(map[string]*domainReminder.MessageTemplate),
	}
	today, _ := timeutils.DayBounds(now)

	for _, rule := range rules {
		if ctx.Err() != nil {
			break
		}
		if !timeutils.ContainsWeekday(rule.WeekDays, now.Weekday()) {
			report.RulesSkipped++
			continue
		}
		if err := validations.ValidateSendingRule(ctx, rule); err != nil {
			log.WithError(err).WithField("rule", rule.ID).Warn("[SCHEDULER] invalid rule skipped")
			report.RulesSkipped++
			continue
		}
		report.RulesMatched++
		s.runRule(ctx, pass, rule, today, &report)
	}

	report.FinishedAt = time.Now()
	log.WithFields(logrus.Fields{
		"rules":     report.RulesMatched,
		"customers": report.CustomersFound,
		"sent":      report.Sent,
		"failed":    report.Failed,
	}).Info("[SCHEDULER] pass finished")
	return report
}

// passState memoizes tenant and template lookups for one pass.
type passState struct {
	tenants   map[string]*tenantTarget
	templates map[string]*domainReminder.MessageTemplate
}

type tenantTarget struct {
	tenant   tenant.Tenant
	instance tenant.WhatsAppInstance
	err      error
}

func (s *ReminderScheduler) runRule(ctx context.Context, pass *passState, rule domainReminder.SendingRule, today time.Time, report *domainReminder.PassReport) {
	log := logrus.WithFields(logrus.Fields{"tenant": rule.TenantID, "rule": rule.ID})

	target := today.AddDate(0, 0, rule.DaysOffset)
	customers, err := s.reminders.ListCustomersDueBetween(ctx, rule.TenantID, rule.CategoryID, target, target.AddDate(0, 0, 1))
	if err != nil {
		log.WithError(err).Error("[SCHEDULER] failed to load customers")
		return
	}
	if len(customers) == 0 {
		return
	}
	report.CustomersFound += len(customers)

	tgt := s.target(ctx, pass, rule.TenantID)
	tpl, tplErr := s.template(ctx, pass, rule.TemplateID)

	for _, c := range customers {
		if ctx.Err() != nil {
			return
		}
		err := tgt.err
		if err == nil {
			err = tplErr
		}
		if err == nil {
			err = s.deliver(ctx, tgt, tpl, c, report.Slot)
		}

		s.audited(ctx, rule, c, report.Slot, err)
		if err != nil {
			report.Failed++
			log.WithError(err).WithField("customer", c.ID).Warn("[SCHEDULER] reminder not sent")
			continue
		}
		report.Sent++
	}
}

func (s *ReminderScheduler) deliver(ctx context.Context, tgt *tenantTarget, tpl *domainReminder.MessageTemplate, c domainReminder.Customer, slot string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgError.InternalServerError(fmt.Sprintf("panic while sending reminder: %v", r))
		}
	}()

	phone := utils.DigitsOnly(c.Phone)
	if phone == "" {
		return pkgError.ValidationError("customer has no phone")
	}

	text := s.renderer.Render(tpl.Content, domainReminder.CustomerContext{Customer: c, Tenant: tgt.tenant}, nil)

	if err := s.limiter(tgt.tenant.ID).Wait(ctx); err != nil {
		return err
	}

	started := time.Now()
	err = s.sender.SendText(ctx, tgt.instance, phone, text)
	s.record(tgt, phone, slot, started, err)
	return err
}

func (s *ReminderScheduler) target(ctx context.Context, pass *passState, tenantID string) *tenantTarget {
	if tgt, ok := pass.tenants[tenantID]; ok {
		return tgt
	}
	tgt := &tenantTarget{}
	pass.tenants[tenantID] = tgt

	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		tgt.err = err
		return tgt
	}
	if !t.IsBillingActive() {
		tgt.err = pkgError.ConfigError(fmt.Sprintf("tenant %s billing is %s", tenantID, t.Status))
		return tgt
	}
	inst, err := s.tenants.GetInstance(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrInstanceMissing) {
			err = pkgError.ConfigError(fmt.Sprintf("tenant %s has no whatsapp instance", tenantID))
		}
		tgt.err = err
		return tgt
	}
	tgt.tenant, tgt.instance = t, inst
	return tgt
}

func (s *ReminderScheduler) template(ctx context.Context, pass *passState, id string) (*domainReminder.MessageTemplate, error) {
	if tpl, ok := pass.templates[id]; ok {
		if tpl == nil {
			return nil, domainReminder.ErrTemplateNotFound
		}
		return tpl, nil
	}
	tpl, err := s.reminders.GetTemplate(ctx, id)
	if err != nil {
		pass.templates[id] = nil
		return nil, err
	}
	pass.templates[id] = &tpl
	return &tpl, nil
}

func (s *ReminderScheduler) limiter(tenantID string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	l, ok := s.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(s.sendRate, s.sendBurst)
		s.limiters[tenantID] = l
	}
	return l
}

func (s *ReminderScheduler) audited(ctx context.Context, rule domainReminder.SendingRule, c domainReminder.Customer, slot string, sendErr error) {
	if s.audit == nil {
		return
	}
	entry := domainReminder.DispatchLog{
		TenantID:   rule.TenantID,
		RuleID:     rule.ID,
		CustomerID: c.ID,
		Slot:       slot,
		Status:     domainReminder.DispatchSent,
		SentAt:     time.Now().UTC(),
	}
	if sendErr != nil {
		entry.Status = domainReminder.DispatchFailed
		entry.Error = sendErr.Error()
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logrus.WithError(err).WithField("customer", c.ID).Warn("[SCHEDULER] audit row not written")
	}
}

func (s *ReminderScheduler) record(tgt *tenantTarget, phone, slot string, started time.Time, err error) {
	if s.monitor == nil {
		return
	}
	ev := botmonitor.Event{
		TenantID:   tgt.tenant.ID,
		ChatJID:    phone,
		Provider:   string(tgt.instance.Provider),
		Stage:      botmonitor.StageReminder,
		Kind:       "text",
		Status:     botmonitor.StatusOK,
		Metadata:   map[string]string{"slot": slot},
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		ev.Status = botmonitor.StatusError
		ev.Error = err.Error()
	}
	s.monitor.Record(ev)
}

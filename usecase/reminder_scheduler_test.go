package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("failed to load zone: %v", err)
	}
	return loc
}

func schedulerReminders(loc *time.Location) *fakeReminders {
	due := func(d, h, m int) time.Time { return time.Date(2026, 10, d, h, m, 0, 0, loc) }
	return &fakeReminders{
		rules: []domainReminder.SendingRule{
			{ID: "r1", TenantID: "t1", CategoryID: "c1", TemplateID: "tpl1", DaysOffset: 3, TimeToSend: "09:00", WeekDays: []int{1, 2, 3, 4, 5}, Active: true},
		},
		customers: []domainReminder.Customer{
			{ID: "cu1", TenantID: "t1", CategoryID: "c1", Name: "Maria Souza", Phone: "5511988887777", DueDate: due(22, 0, 0)},
			{ID: "cu2", TenantID: "t1", CategoryID: "c1", Name: "João Lima", Phone: "+55 (11) 97777-6666", DueDate: due(22, 23, 59)},
			{ID: "cu3", TenantID: "t1", CategoryID: "c1", Name: "Fora da janela", Phone: "5511900000001", DueDate: due(23, 0, 0)},
			{ID: "cu4", TenantID: "t1", CategoryID: "c2", Name: "Outra categoria", Phone: "5511900000002", DueDate: due(22, 10, 0)},
		},
		templates: map[string]domainReminder.MessageTemplate{
			"tpl1": {ID: "tpl1", TenantID: "t1", Name: "lembrete", Content: "{{saudacao}}, {{customer_first_name}}! Faltam {{days_remaining}} dias."},
		},
	}
}

func TestSchedulerMatchesRuleOnSlotAndWeekday(t *testing.T) {
	loc := saoPaulo(t)
	reminders := schedulerReminders(loc)
	sender := &fakeSender{}
	audit := &fakeAudit{}
	monitor := botmonitor.New(10, 0)
	defer monitor.Close()

	s := NewReminderScheduler(reminders, newFakeTenants(), sender, SchedulerOptions{Location: loc, Audit: audit, Monitor: monitor})

	// lunes 19/10/2026 09:00, vencimiento objetivo el jueves 22
	report := s.RunOnce(context.Background(), time.Date(2026, 10, 19, 9, 0, 0, 0, loc))

	assert.Equal(t, "09:00", report.Slot)
	assert.Equal(t, 1, report.Weekday)
	assert.Equal(t, 1, report.RulesMatched)
	assert.Equal(t, 2, report.CustomersFound)
	assert.Equal(t, 2, report.Sent)
	assert.Zero(t, report.Failed)

	sent := sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "5511988887777", sent[0].To)
	assert.Equal(t, "Bom dia, Maria! Faltam 3 dias.", sent[0].Text)
	assert.Equal(t, "5511977776666", sent[1].To)
	assert.Equal(t, "forte", sent[1].Instance)

	require.Len(t, reminders.windows, 1)
	assert.True(t, reminders.windows[0][0].Equal(time.Date(2026, 10, 22, 0, 0, 0, 0, loc)))
	assert.True(t, reminders.windows[0][1].Equal(time.Date(2026, 10, 23, 0, 0, 0, 0, loc)))

	require.Len(t, audit.logs, 2)
	assert.Equal(t, domainReminder.DispatchSent, audit.logs[0].Status)
	assert.Equal(t, "r1", audit.logs[0].RuleID)
	assert.Equal(t, int64(2), monitor.GetStats().TotalReminders)
}

func TestSchedulerSkipsOtherSlotsAndWeekdays(t *testing.T) {
	loc := saoPaulo(t)
	sender := &fakeSender{}
	s := NewReminderScheduler(schedulerReminders(loc), newFakeTenants(), sender, SchedulerOptions{Location: loc})
	ctx := context.Background()

	// domingo
	report := s.RunOnce(ctx, time.Date(2026, 10, 18, 9, 30, 0, 0, loc))
	assert.Zero(t, report.RulesMatched)
	assert.Equal(t, 1, report.RulesSkipped)

	// otra hora
	report = s.RunOnce(ctx, time.Date(2026, 10, 19, 10, 0, 0, 0, loc))
	assert.Equal(t, "10:00", report.Slot)
	assert.Zero(t, report.RulesMatched)

	assert.Empty(t, sender.Sent())
}

func TestSchedulerRunsInConfiguredZone(t *testing.T) {
	loc := saoPaulo(t)
	sender := &fakeSender{}
	s := NewReminderScheduler(schedulerReminders(loc), newFakeTenants(), sender, SchedulerOptions{Location: loc})

	// 12:00 UTC es 09:00 en São Paulo
	report := s.RunOnce(context.Background(), time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "09:00", report.Slot)
	assert.Equal(t, 2, report.Sent)
}

func TestSchedulerRepeatsWithinSameSlot(t *testing.T) {
	loc := saoPaulo(t)
	sender := &fakeSender{}
	s := NewReminderScheduler(schedulerReminders(loc), newFakeTenants(), sender, SchedulerOptions{Location: loc})
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)

	s.RunOnce(context.Background(), now)
	s.RunOnce(context.Background(), now)
	assert.Len(t, sender.Sent(), 4, "no dedupe across passes")
}

func TestSchedulerIsolatesCustomerFailures(t *testing.T) {
	loc := saoPaulo(t)
	reminders := schedulerReminders(loc)
	reminders.customers[0].Phone = ""
	sender := &fakeSender{fail: map[string]bool{"5511977776666": true}}
	audit := &fakeAudit{}

	s := NewReminderScheduler(reminders, newFakeTenants(), sender, SchedulerOptions{Location: loc, Audit: audit})
	report := s.RunOnce(context.Background(), time.Date(2026, 10, 19, 9, 0, 0, 0, loc))

	assert.Equal(t, 2, report.CustomersFound)
	assert.Zero(t, report.Sent)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, audit.logs, 2)
	for _, l := range audit.logs {
		assert.Equal(t, domainReminder.DispatchFailed, l.Status)
		assert.NotEmpty(t, l.Error)
	}
}

func TestSchedulerSkipsInvalidRulesAndMissingTemplates(t *testing.T) {
	loc := saoPaulo(t)
	reminders := schedulerReminders(loc)
	reminders.rules = append(reminders.rules,
		domainReminder.SendingRule{ID: "bad", TenantID: "t1", CategoryID: "c1", TemplateID: "tpl1", TimeToSend: "09:00", WeekDays: []int{1, 9}, Active: true},
	)
	reminders.rules[0].TemplateID = "missing"
	sender := &fakeSender{}

	s := NewReminderScheduler(reminders, newFakeTenants(), sender, SchedulerOptions{Location: loc})
	report := s.RunOnce(context.Background(), time.Date(2026, 10, 19, 9, 0, 0, 0, loc))

	assert.Equal(t, 1, report.RulesSkipped)
	assert.Equal(t, 1, report.RulesMatched)
	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, sender.Sent())
}

func TestSchedulerSkipsOverlappingPass(t *testing.T) {
	loc := saoPaulo(t)
	sender := &fakeSender{block: make(chan struct{})}
	s := NewReminderScheduler(schedulerReminders(loc), newFakeTenants(), sender, SchedulerOptions{Location: loc})
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)

	var wg sync.WaitGroup
	var first domainReminder.PassReport
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = s.RunOnce(context.Background(), now)
	}()

	require.Eventually(t, func() bool { return s.running.Load() }, time.Second, 5*time.Millisecond)

	second := s.RunOnce(context.Background(), now)
	assert.True(t, second.Skipped)

	close(sender.block)
	wg.Wait()
	assert.False(t, first.Skipped)
	assert.Equal(t, 2, first.Sent)
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewReminderScheduler(&fakeReminders{}, newFakeTenants(), &fakeSender{}, SchedulerOptions{})

	s.Start(context.Background())
	s.Start(context.Background()) // segunda llamada no lanza otro loop

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop() did not return")
	}
	s.Stop()
}

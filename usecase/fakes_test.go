package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AzielCF/az-flow/domains/message"
	domainReminder "github.com/AzielCF/az-flow/domains/reminder"
	"github.com/AzielCF/az-flow/domains/session"
	"github.com/AzielCF/az-flow/domains/tenant"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
)

type fakeTenants struct {
	tenants   map[string]tenant.Tenant
	configs   map[string]tenant.BotConfig
	instances map[string]tenant.WhatsAppInstance
}

// newFakeTenants arma un tenant completo "t1" con token ABC123.
func newFakeTenants() *fakeTenants {
	return &fakeTenants{
		tenants: map[string]tenant.Tenant{
			"t1": {ID: "t1", Name: "Academia", CompanyName: "Academia Forte", WebhookToken: "ABC123", Status: tenant.StatusActive, PixKey: "pix@forte.com"},
		},
		configs: map[string]tenant.BotConfig{
			"t1": {TenantID: "t1", EngineType: tenant.EngineIntent, Language: "pt-BR"},
		},
		instances: map[string]tenant.WhatsAppInstance{
			"t1": {TenantID: "t1", Provider: tenant.ProviderEvolution, BaseURL: "http://evo", InstanceID: "forte"},
		},
	}
}

func (f *fakeTenants) GetTenant(_ context.Context, id string) (tenant.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return tenant.Tenant{}, tenant.ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeTenants) GetBotConfig(_ context.Context, id string) (tenant.BotConfig, error) {
	c, ok := f.configs[id]
	if !ok {
		return tenant.BotConfig{}, tenant.ErrBotConfigMissing
	}
	return c, nil
}

func (f *fakeTenants) GetInstance(_ context.Context, id string) (tenant.WhatsAppInstance, error) {
	i, ok := f.instances[id]
	if !ok {
		return tenant.WhatsAppInstance{}, tenant.ErrInstanceMissing
	}
	return i, nil
}

func (f *fakeTenants) EnsureBotConfig(ctx context.Context, id string, engine tenant.EngineType) (tenant.BotConfig, error) {
	if c, ok := f.configs[id]; ok {
		return c, nil
	}
	c := tenant.BotConfig{TenantID: id, EngineType: engine}
	f.configs[id] = c
	return c, nil
}

func (f *fakeTenants) UpdateInstanceStatus(_ context.Context, id string, status tenant.InstanceStatus) error {
	i, ok := f.instances[id]
	if !ok {
		return tenant.ErrInstanceMissing
	}
	i.Status = status
	f.instances[id] = i
	return nil
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   []string
	replies []message.ReplyFragment
	err     error
	panics  any // si no es nil, Respond entra en pánico con este valor
}

func (e *fakeEngine) Respond(_ context.Context, _ tenant.BotConfig, _ session.ChatSession, text string) ([]message.ReplyFragment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.panics != nil {
		panic(e.panics)
	}
	return e.replies, e.err
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type sentMessage struct {
	Instance string
	To       string
	Kind     message.FragmentKind
	Text     string
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentMessage
	fail  map[string]bool // destinatarios que fallan
	block chan struct{}   // si no es nil, SendText espera hasta que se cierre
}

func (s *fakeSender) SendText(ctx context.Context, inst tenant.WhatsAppInstance, to, text string) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.SendFragment(ctx, inst, to, message.Text(text))
}

func (s *fakeSender) SendFragment(_ context.Context, inst tenant.WhatsAppInstance, to string, frag message.ReplyFragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[to] {
		return pkgError.SendError("provider rejected " + to)
	}
	s.sent = append(s.sent, sentMessage{Instance: inst.InstanceID, To: to, Kind: frag.Kind, Text: frag.Content})
	return nil
}

func (s *fakeSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type fakeReminders struct {
	rules     []domainReminder.SendingRule
	customers []domainReminder.Customer
	templates map[string]domainReminder.MessageTemplate

	mu      sync.Mutex
	windows [][2]time.Time
}

func (f *fakeReminders) ListRulesForSlot(_ context.Context, slot string) ([]domainReminder.SendingRule, error) {
	var out []domainReminder.SendingRule
	for _, r := range f.rules {
		if r.Active && r.TimeToSend == slot {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminders) ListCustomersDueBetween(_ context.Context, tenantID, categoryID string, from, to time.Time) ([]domainReminder.Customer, error) {
	f.mu.Lock()
	f.windows = append(f.windows, [2]time.Time{from, to})
	f.mu.Unlock()

	var out []domainReminder.Customer
	for _, c := range f.customers {
		if c.TenantID != tenantID || c.CategoryID != categoryID {
			continue
		}
		if !c.DueDate.Before(from) && c.DueDate.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeReminders) GetTemplate(_ context.Context, id string) (domainReminder.MessageTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return domainReminder.MessageTemplate{}, domainReminder.ErrTemplateNotFound
	}
	return t, nil
}

func (f *fakeReminders) GetTemplateByName(_ context.Context, tenantID, name string) (domainReminder.MessageTemplate, error) {
	for _, t := range f.templates {
		if t.TenantID == tenantID && t.Name == name {
			return t, nil
		}
	}
	return domainReminder.MessageTemplate{}, domainReminder.ErrTemplateNotFound
}

func (f *fakeReminders) FindCustomerByPhone(_ context.Context, tenantID, phone string) (domainReminder.Customer, error) {
	for _, c := range f.customers {
		if c.TenantID == tenantID && c.Phone == phone {
			return c, nil
		}
	}
	return domainReminder.Customer{}, domainReminder.ErrCustomerNotFound
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []domainReminder.DispatchLog
	err  error
}

func (a *fakeAudit) Record(_ context.Context, log domainReminder.DispatchLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

var errBoom = errors.New("boom")

package tenant

import (
	"context"
	"errors"
	"time"
)

// Status is the tenant billing state.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// EngineType selects the conversational engine behind a tenant's bot.
type EngineType string

const (
	EngineIntent     EngineType = "intent"     // Dialogflow-style detectIntent
	EngineFlow       EngineType = "flow"       // Typebot-style startChat/continueChat
	EngineGenerative EngineType = "generative" // LLM single turn (Gemini / OpenAI)
)

// Provider is the WhatsApp HTTP API a tenant's instance lives on.
type Provider string

const (
	ProviderEvolution Provider = "evolution"
	ProviderUazapi    Provider = "uazapi"
	ProviderWuzapi    Provider = "wuzapi"
)

type InstanceStatus string

const (
	InstanceDisconnected InstanceStatus = "disconnected"
	InstanceConnecting   InstanceStatus = "connecting"
	InstanceConnected    InstanceStatus = "connected"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrBotConfigMissing = errors.New("bot config not found")
	ErrInstanceMissing  = errors.New("whatsapp instance not found")
)

type Tenant struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CompanyName     string    `json:"company_name"`
	WebhookToken    string    `json:"-"`
	Status          Status    `json:"status"`
	PixKey          string    `json:"pix_key"`
	PaymentLinkBase string    `json:"payment_link_base"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsBillingActive reports whether the tenant may use automation.
func (t Tenant) IsBillingActive() bool {
	return t.Status == StatusActive || t.Status == StatusTrialing
}

type BotConfig struct {
	TenantID    string     `json:"tenant_id"`
	EngineType  EngineType `json:"engine_type"`
	Credentials string     `json:"-"` // sealed with pkg/crypto
	Language    string     `json:"language"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type WhatsAppInstance struct {
	TenantID   string         `json:"tenant_id"`
	Provider   Provider       `json:"provider"`
	BaseURL    string         `json:"base_url"`
	Token      string         `json:"-"` // sealed with pkg/crypto
	InstanceID string         `json:"instance_id"`
	Status     InstanceStatus `json:"status"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Bundle is everything the webhook path needs about one tenant.
type Bundle struct {
	Tenant    Tenant
	BotConfig *BotConfig
	Instance  *WhatsAppInstance
}

type ITenantRepository interface {
	GetTenant(ctx context.Context, id string) (Tenant, error)
	GetBotConfig(ctx context.Context, tenantID string) (BotConfig, error)
	GetInstance(ctx context.Context, tenantID string) (WhatsAppInstance, error)
	// EnsureBotConfig returns the tenant's bot config, creating an empty one on first use.
	EnsureBotConfig(ctx context.Context, tenantID string, engine EngineType) (BotConfig, error)
	UpdateInstanceStatus(ctx context.Context, tenantID string, status InstanceStatus) error
}

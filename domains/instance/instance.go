package instance

import (
	"context"

	"github.com/AzielCF/az-flow/domains/tenant"
)

// ConnectionPayload is what an operator needs to pair a WhatsApp number.
type ConnectionPayload struct {
	Connected   bool   `json:"connected"`
	Code        string `json:"code,omitempty"`         // raw QR content
	PairingCode string `json:"pairing_code,omitempty"` // phone-number pairing alternative
	QRCode      string `json:"qr_code,omitempty"`      // data:image/png;base64,...
	Source      string `json:"source"`                 // endpoint that answered
}

type StatusResponse struct {
	TenantID string                `json:"tenant_id"`
	Provider tenant.Provider       `json:"provider"`
	Status   tenant.InstanceStatus `json:"status"`
}

type WebhookResponse struct {
	TenantID string `json:"tenant_id"`
	URL      string `json:"url"`
}

type IInstanceUsecase interface {
	// Status probes the provider and stores the canonical status.
	Status(ctx context.Context, tenantID string) (StatusResponse, error)
	Connect(ctx context.Context, tenantID string) (ConnectionPayload, error)
	// ConfigureWebhook points the provider at this service's inbound endpoint.
	ConfigureWebhook(ctx context.Context, tenantID, publicBaseURL string) (WebhookResponse, error)
}

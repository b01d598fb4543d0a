package whatsapp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/go-resty/resty/v2"
)

// Evolution talks to Evolution API v2. Instance-scoped paths, key in the apikey header.
type Evolution struct{}

func (Evolution) Kind() tenant.Provider { return tenant.ProviderEvolution }

func (Evolution) req(ctx context.Context, c *Conn) *resty.Request {
	return c.R(ctx).SetHeader("apikey", c.Token)
}

func (e Evolution) instancePath(c *Conn, format string) string {
	return c.URL(fmt.Sprintf(format, url.PathEscape(c.InstanceID)))
}

func (e Evolution) SendText(ctx context.Context, c *Conn, number, text string) error {
	resp, err := e.req(ctx, c).
		SetBody(map[string]any{"number": number, "text": text}).
		Post(e.instancePath(c, "/message/sendText/%s"))
	return check("evolution sendText", resp, err)
}

func (e Evolution) SendMedia(ctx context.Context, c *Conn, number, mediaURL string, kind message.FragmentKind, caption string) error {
	if kind == message.FragmentAudio {
		resp, err := e.req(ctx, c).
			SetBody(map[string]any{"number": number, "audio": mediaURL}).
			Post(e.instancePath(c, "/message/sendWhatsAppAudio/%s"))
		return check("evolution sendWhatsAppAudio", resp, err)
	}
	resp, err := e.req(ctx, c).
		SetBody(map[string]any{
			"number":    number,
			"mediatype": string(kind),
			"media":     mediaURL,
			"caption":   caption,
		}).
		Post(e.instancePath(c, "/message/sendMedia/%s"))
	return check("evolution sendMedia", resp, err)
}

func (e Evolution) ConnectAttempts() []ConnectAttempt {
	return []ConnectAttempt{
		{Name: "instance/connect", Run: e.connect},
		{Name: "instance/qrcode", Run: e.legacyQRCode},
	}
}

func (e Evolution) connect(ctx context.Context, c *Conn) (*ConnectionPayload, error) {
	resp, err := e.req(ctx, c).Get(e.instancePath(c, "/instance/connect/%s"))
	if err := check("evolution connect", resp, err); err != nil {
		return nil, err
	}
	doc, err := decode(resp)
	if err != nil {
		return nil, err
	}
	p := &ConnectionPayload{
		Code:        pathString(doc, "code"),
		PairingCode: pathString(doc, "pairingCode"),
		QRCode:      pathString(doc, "base64"),
	}
	if state, ok := mapStatus(pathString(doc, "instance", "state")); ok && state == tenant.InstanceConnected {
		p.Connected = true
	}
	return p, nil
}

func (e Evolution) legacyQRCode(ctx context.Context, c *Conn) (*ConnectionPayload, error) {
	resp, err := e.req(ctx, c).
		SetQueryParam("image", "true").
		Get(e.instancePath(c, "/instance/qrcode/%s"))
	if err := check("evolution qrcode", resp, err); err != nil {
		return nil, err
	}
	doc, err := decode(resp)
	if err != nil {
		return nil, err
	}
	p := &ConnectionPayload{
		Code:   pathString(doc, "code"),
		QRCode: pathString(doc, "base64"),
	}
	if p.Code == "" && p.QRCode == "" {
		p.Code = pathString(doc, "qrcode", "code")
		p.QRCode = pathString(doc, "qrcode", "base64")
	}
	return p, nil
}

func (e Evolution) Status(ctx context.Context, c *Conn) (tenant.InstanceStatus, error) {
	resp, err := e.req(ctx, c).Get(e.instancePath(c, "/instance/connectionState/%s"))
	if err := check("evolution connectionState", resp, err); err != nil {
		return "", err
	}
	doc, err := decode(resp)
	if err != nil {
		return "", err
	}
	raw := pathString(doc, "instance", "state")
	if raw == "" {
		raw = pathString(doc, "state")
	}
	status, ok := mapStatus(raw)
	if !ok {
		return "", fmt.Errorf("evolution: unknown state %q", raw)
	}
	return status, nil
}

func (e Evolution) SetWebhook(ctx context.Context, c *Conn, webhookURL string) error {
	resp, err := e.req(ctx, c).
		SetBody(map[string]any{
			"webhook": map[string]any{
				"enabled":  true,
				"url":      webhookURL,
				"byEvents": false,
				"base64":   false,
				"events":   []string{"MESSAGES_UPSERT"},
			},
		}).
		Post(e.instancePath(c, "/webhook/set/%s"))
	return check("evolution webhook/set", resp, err)
}

package whatsapp

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/go-resty/resty/v2"
)

// Uazapi talks to uazapiGO. Releases disagree on the header name, so the
// instance token goes out under all three.
type Uazapi struct{}

func (Uazapi) Kind() tenant.Provider { return tenant.ProviderUazapi }

func (Uazapi) req(ctx context.Context, c *Conn) *resty.Request {
	return c.R(ctx).SetHeaders(map[string]string{
		"token":      c.Token,
		"apikey":     c.Token,
		"admintoken": c.Token,
	})
}

func (u Uazapi) SendText(ctx context.Context, c *Conn, number, text string) error {
	resp, err := u.req(ctx, c).
		SetBody(map[string]any{"number": number, "text": text, "linkPreview": true}).
		Post(c.URL("/send/text"))
	return check("uazapi send/text", resp, err)
}

func (u Uazapi) SendMedia(ctx context.Context, c *Conn, number, mediaURL string, kind message.FragmentKind, caption string) error {
	mediaType := string(kind)
	if kind == message.FragmentAudio {
		mediaType = "ptt"
	}
	resp, err := u.req(ctx, c).
		SetBody(map[string]any{
			"number": number,
			"type":   mediaType,
			"file":   mediaURL,
			"text":   caption,
		}).
		Post(c.URL("/send/media"))
	return check("uazapi send/media", resp, err)
}

func (u Uazapi) ConnectAttempts() []ConnectAttempt {
	return []ConnectAttempt{
		{Name: "instance/connect", Run: u.connect},
		{Name: "instance/status", Run: u.statusQRCode},
	}
}

func (u Uazapi) connect(ctx context.Context, c *Conn) (*ConnectionPayload, error) {
	resp, err := u.req(ctx, c).SetBody(map[string]any{}).Post(c.URL("/instance/connect"))
	if err := check("uazapi connect", resp, err); err != nil {
		return nil, err
	}
	doc, err := decode(resp)
	if err != nil {
		return nil, err
	}
	return uazapiPayload(doc), nil
}

func (u Uazapi) statusQRCode(ctx context.Context, c *Conn) (*ConnectionPayload, error) {
	resp, err := u.req(ctx, c).Get(c.URL("/instance/status"))
	if err := check("uazapi status", resp, err); err != nil {
		return nil, err
	}
	doc, err := decode(resp)
	if err != nil {
		return nil, err
	}
	return uazapiPayload(doc), nil
}

func uazapiPayload(doc map[string]any) *ConnectionPayload {
	p := &ConnectionPayload{
		QRCode:      pathString(doc, "instance", "qrcode"),
		PairingCode: pathString(doc, "instance", "paircode"),
	}
	if p.QRCode == "" {
		p.QRCode = pathString(doc, "qrcode")
	}
	if connected, ok := pathBool(doc, "connected"); ok && connected {
		p.Connected = true
	}
	if connected, ok := pathBool(doc, "status", "connected"); ok && connected {
		p.Connected = true
	}
	return p
}

func (u Uazapi) Status(ctx context.Context, c *Conn) (tenant.InstanceStatus, error) {
	resp, err := u.req(ctx, c).Get(c.URL("/instance/status"))
	if err := check("uazapi status", resp, err); err != nil {
		return "", err
	}
	doc, err := decode(resp)
	if err != nil {
		return "", err
	}

	if connected, ok := pathBool(doc, "status", "connected"); ok {
		loggedIn, hasLogin := pathBool(doc, "status", "loggedIn")
		switch {
		case connected && (!hasLogin || loggedIn):
			return tenant.InstanceConnected, nil
		case connected:
			return tenant.InstanceConnecting, nil
		default:
			return tenant.InstanceDisconnected, nil
		}
	}
	raw := pathString(doc, "instance", "status")
	if raw == "" {
		raw = pathString(doc, "status")
	}
	status, ok := mapStatus(raw)
	if !ok {
		return "", fmt.Errorf("uazapi: unknown status %q", raw)
	}
	return status, nil
}

func (u Uazapi) SetWebhook(ctx context.Context, c *Conn, webhookURL string) error {
	resp, err := u.req(ctx, c).
		SetBody(map[string]any{
			"enabled":         true,
			"url":             webhookURL,
			"events":          []string{"messages"},
			"excludeMessages": []string{"wasSentByApi"},
		}).
		Post(c.URL("/webhook"))
	return check("uazapi webhook", resp, err)
}

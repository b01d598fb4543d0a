package whatsapp

import (
	"context"
	"strings"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/go-resty/resty/v2"
)

// Wuzapi talks to wuzapi (whatsmeow REST). The user token goes in the Token header.
type Wuzapi struct{}

func (Wuzapi) Kind() tenant.Provider { return tenant.ProviderWuzapi }

func (Wuzapi) req(ctx context.Context, c *Conn) *resty.Request {
	return c.R(ctx).SetHeader("Token", c.Token)
}

func (w Wuzapi) SendText(ctx context.Context, c *Conn, number, text string) error {
	resp, err := w.req(ctx, c).
		SetBody(map[string]any{"Phone": number, "Body": text}).
		Post(c.URL("/chat/send/text"))
	return check("wuzapi chat/send/text", resp, err)
}

func (w Wuzapi) SendMedia(ctx context.Context, c *Conn, number, mediaURL string, kind message.FragmentKind, caption string) error {
	field := map[message.FragmentKind]string{
		message.FragmentImage:    "Image",
		message.FragmentVideo:    "Video",
		message.FragmentAudio:    "Audio",
		message.FragmentDocument: "Document",
	}[kind]
	if field == "" {
		field = "Document"
		kind = message.FragmentDocument
	}
	body := map[string]any{"Phone": number, field: mediaURL}
	if caption != "" && kind != message.FragmentAudio {
		body["Caption"] = caption
	}
	if kind == message.FragmentDocument {
		body["FileName"] = fileNameFromURL(mediaURL)
	}
	resp, err := w.req(ctx, c).SetBody(body).Post(c.URL("/chat/send/" + string(kind)))
	return check("wuzapi chat/send/"+string(kind), resp, err)
}

func fileNameFromURL(u string) string {
	u = strings.SplitN(u, "?", 2)[0]
	if i := strings.LastIndex(u, "/"); i >= 0 && i < len(u)-1 {
		return u[i+1:]
	}
	return "document"
}

func (w Wuzapi) ConnectAttempts() []ConnectAttempt {
	return []ConnectAttempt{
		{Name: "session/qr", Run: w.qr},
		{Name: "session/connect", Run: w.connectThenQR},
	}
}

func (w Wuzapi) qr(ctx context.Context, c *Conn) (*ConnectionPayload, error) {
	resp, err := w.req(ctx, c).Get(c.URL("/session/qr"))
	if err := check("wuzapi session/qr", resp, err); err != nil {
		return nil, err
	}
	doc, err := decode(resp)
	if err != nil {
		return nil, err
	}
	return &ConnectionPayload{QRCode: pathString(doc, "data", "QRCode")}, nil
}

func (w Wuzapi) connectThenQR(ctx context.Context, c *Conn) (*ConnectionPayload, error) {
	resp, err := w.req(ctx, c).
		SetBody(map[string]any{"Subscribe": []string{"Message"}, "Immediate": true}).
		Post(c.URL("/session/connect"))
	if err := check("wuzapi session/connect", resp, err); err != nil {
		return nil, err
	}
	return w.qr(ctx, c)
}

func (w Wuzapi) Status(ctx context.Context, c *Conn) (tenant.InstanceStatus, error) {
	resp, err := w.req(ctx, c).Get(c.URL("/session/status"))
	if err := check("wuzapi session/status", resp, err); err != nil {
		return "", err
	}
	doc, err := decode(resp)
	if err != nil {
		return "", err
	}
	connected, _ := pathBool(doc, "data", "Connected")
	loggedIn, _ := pathBool(doc, "data", "LoggedIn")
	switch {
	case connected && loggedIn:
		return tenant.InstanceConnected, nil
	case connected:
		return tenant.InstanceConnecting, nil
	default:
		return tenant.InstanceDisconnected, nil
	}
}

func (w Wuzapi) SetWebhook(ctx context.Context, c *Conn, webhookURL string) error {
	resp, err := w.req(ctx, c).
		SetBody(map[string]any{
			"webhook":    webhookURL,
			"webhookURL": webhookURL,
			"events":     []string{"Message"},
		}).
		Post(c.URL("/webhook"))
	return check("wuzapi webhook", resp, err)
}

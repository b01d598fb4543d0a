package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	domainInstance "github.com/AzielCF/az-flow/domains/instance"
	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/go-resty/resty/v2"
)

// ConnectionPayload is what an operator needs to pair a WhatsApp number.
type ConnectionPayload = domainInstance.ConnectionPayload

// Conn is one instance's connection details with the decrypted token.
type Conn struct {
	http       *resty.Client
	BaseURL    string
	Token      string
	InstanceID string
}

// R starts a request bound to ctx.
func (c *Conn) R(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

func (c *Conn) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// ConnectAttempt is one candidate endpoint for GetConnectData.
type ConnectAttempt struct {
	Name string
	Run  func(ctx context.Context, c *Conn) (*ConnectionPayload, error)
}

// Provider is one WhatsApp HTTP API. Each variant owns its paths, bodies and header names.
type Provider interface {
	Kind() tenant.Provider
	SendText(ctx context.Context, c *Conn, number, text string) error
	SendMedia(ctx context.Context, c *Conn, number, url string, kind message.FragmentKind, caption string) error
	ConnectAttempts() []ConnectAttempt
	Status(ctx context.Context, c *Conn) (tenant.InstanceStatus, error)
	SetWebhook(ctx context.Context, c *Conn, url string) error
}

// check turns a transport error or non-2xx answer into an error.
func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), body)
	}
	return nil
}

// decode unmarshals a response body into a generic document.
func decode(resp *resty.Response) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return doc, nil
}

func path(doc map[string]any, keys ...string) any {
	var cur any = doc
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

func pathString(doc map[string]any, keys ...string) string {
	s, _ := path(doc, keys...).(string)
	return strings.TrimSpace(s)
}

func pathBool(doc map[string]any, keys ...string) (bool, bool) {
	b, ok := path(doc, keys...).(bool)
	return b, ok
}

// mapStatus maps provider vocabulary to the canonical three states.
func mapStatus(raw string) (tenant.InstanceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "connected", "online":
		return tenant.InstanceConnected, true
	case "close", "closed", "disconnected", "offline", "logout":
		return tenant.InstanceDisconnected, true
	case "connecting", "qrcode", "pairing":
		return tenant.InstanceConnecting, true
	}
	return "", false
}

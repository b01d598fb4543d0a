package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"github.com/AzielCF/az-flow/pkg/crypto"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  []recorded
	routes map[string]func(w http.ResponseWriter)
}

func newFakeProvider(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*fakeProvider, *httptest.Server) {
	f := &fakeProvider{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, rec)
		f.mu.Unlock()

		if h, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
			h(w)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func jsonReply(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func failWith(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func instance(p tenant.Provider, baseURL, token string) tenant.WhatsAppInstance {
	return tenant.WhatsAppInstance{TenantID: "t1", Provider: p, BaseURL: baseURL, Token: token, InstanceID: "acme"}
}

func TestEvolutionSendTextUsesApikeyAndBareNumber(t *testing.T) {
	f, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /message/sendText/acme": jsonReply(`{"key":{"id":"1"}}`),
	})
	mon := botmonitor.New(10, 0)
	s := NewSender(time.Second, crypto.NewBox(""), mon)

	err := s.SendText(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "evo-key"), "551199999999@s.whatsapp.net", "Olá")
	require.NoError(t, err)

	require.Len(t, f.calls, 1)
	assert.Equal(t, "evo-key", f.calls[0].Header.Get("apikey"))
	assert.Equal(t, "551199999999", f.calls[0].Body["number"])
	assert.Equal(t, "Olá", f.calls[0].Body["text"])
	assert.EqualValues(t, 1, mon.GetStats().TotalDeliveries)
}

func TestUazapiSendsTokenUnderEveryHeader(t *testing.T) {
	f, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /send/text":  jsonReply(`{}`),
		"POST /send/media": jsonReply(`{}`),
	})
	box := crypto.NewBox("secret")
	sealed, err := box.Encrypt("uaz-token")
	require.NoError(t, err)
	s := NewSender(time.Second, box, nil)
	inst := instance(tenant.ProviderUazapi, srv.URL, sealed)

	require.NoError(t, s.SendText(context.Background(), inst, "5511888888888@s.whatsapp.net", "oi"))
	require.NoError(t, s.SendFragment(context.Background(), inst, "5511888888888@s.whatsapp.net",
		message.ReplyFragment{Kind: message.FragmentImage, Content: "boleto", MediaURL: "https://cdn/b.png"}))

	require.Len(t, f.calls, 2)
	for _, h := range []string{"token", "apikey", "admintoken"} {
		assert.Equal(t, "uaz-token", f.calls[0].Header.Get(h), h)
	}
	assert.Equal(t, "/send/media", f.calls[1].Path)
	assert.Equal(t, "image", f.calls[1].Body["type"])
	assert.Equal(t, "https://cdn/b.png", f.calls[1].Body["file"])
	assert.Equal(t, "boleto", f.calls[1].Body["text"])
}

func TestWuzapiSendTextAndMedia(t *testing.T) {
	f, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /chat/send/text":     jsonReply(`{"success":true}`),
		"POST /chat/send/document": jsonReply(`{"success":true}`),
	})
	s := NewSender(time.Second, crypto.NewBox(""), nil)
	inst := instance(tenant.ProviderWuzapi, srv.URL, "wuz")

	require.NoError(t, s.SendText(context.Background(), inst, "5511777777777:3@s.whatsapp.net", "oi"))
	require.NoError(t, s.SendMedia(context.Background(), inst, "5511777777777@s.whatsapp.net", "https://cdn/fatura.pdf?x=1", message.FragmentDocument, "Fatura"))

	require.Len(t, f.calls, 2)
	assert.Equal(t, "wuz", f.calls[0].Header.Get("Token"))
	assert.Equal(t, "5511777777777", f.calls[0].Body["Phone"])
	assert.Equal(t, "oi", f.calls[0].Body["Body"])
	assert.Equal(t, "fatura.pdf", f.calls[1].Body["FileName"])
	assert.Equal(t, "Fatura", f.calls[1].Body["Caption"])
}

func TestSendFailuresAreSendErrors(t *testing.T) {
	_, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /message/sendText/acme": failWith(http.StatusInternalServerError),
	})
	mon := botmonitor.New(10, 0)
	s := NewSender(time.Second, crypto.NewBox(""), mon)
	var sendErr pkgError.SendError

	err := s.SendText(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "k"), "5511@s.whatsapp.net", "oi")
	assert.True(t, errors.As(err, &sendErr), "got %v", err)

	err = s.SendText(context.Background(), instance("telegram", srv.URL, "k"), "5511@s.whatsapp.net", "oi")
	assert.True(t, errors.As(err, &sendErr), "got %v", err)

	err = s.SendText(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "k"), "@s.whatsapp.net", "oi")
	assert.True(t, errors.As(err, &sendErr), "got %v", err)

	err = s.SendMedia(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "k"), "5511@s.whatsapp.net", "u", message.FragmentText, "")
	assert.True(t, errors.As(err, &sendErr), "got %v", err)

	assert.EqualValues(t, 3, mon.GetStats().TotalErrors)
}

func TestGetStatusMapping(t *testing.T) {
	cases := []struct {
		name     string
		provider tenant.Provider
		route    string
		body     string
		want     tenant.InstanceStatus
	}{
		{"evolution open", tenant.ProviderEvolution, "GET /instance/connectionState/acme", `{"instance":{"instanceName":"acme","state":"open"}}`, tenant.InstanceConnected},
		{"evolution close", tenant.ProviderEvolution, "GET /instance/connectionState/acme", `{"instance":{"state":"close"}}`, tenant.InstanceDisconnected},
		{"evolution flat connecting", tenant.ProviderEvolution, "GET /instance/connectionState/acme", `{"state":"connecting"}`, tenant.InstanceConnecting},
		{"uazapi booleans", tenant.ProviderUazapi, "GET /instance/status", `{"status":{"connected":true,"loggedIn":true}}`, tenant.InstanceConnected},
		{"uazapi pairing", tenant.ProviderUazapi, "GET /instance/status", `{"status":{"connected":true,"loggedIn":false}}`, tenant.InstanceConnecting},
		{"uazapi words", tenant.ProviderUazapi, "GET /instance/status", `{"instance":{"status":"disconnected"}}`, tenant.InstanceDisconnected},
		{"wuzapi logged in", tenant.ProviderWuzapi, "GET /session/status", `{"data":{"Connected":true,"LoggedIn":true}}`, tenant.InstanceConnected},
		{"wuzapi waiting qr", tenant.ProviderWuzapi, "GET /session/status", `{"data":{"Connected":true,"LoggedIn":false}}`, tenant.InstanceConnecting},
		{"evolution unknown word", tenant.ProviderEvolution, "GET /instance/connectionState/acme", `{"state":"weird"}`, tenant.InstanceDisconnected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){tc.route: jsonReply(tc.body)})
			s := NewSender(time.Second, crypto.NewBox(""), nil)
			assert.Equal(t, tc.want, s.GetStatus(context.Background(), instance(tc.provider, srv.URL, "k")))
		})
	}

	t.Run("probe failure", func(t *testing.T) {
		_, srv := newFakeProvider(t, nil)
		s := NewSender(time.Second, crypto.NewBox(""), nil)
		assert.Equal(t, tenant.InstanceDisconnected, s.GetStatus(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "k")))
	})
}

func TestGetConnectDataFallsBackInOrder(t *testing.T) {
	f, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"GET /instance/connect/acme": failWith(http.StatusInternalServerError),
		"GET /instance/qrcode/acme":  jsonReply(`{"qrcode":{"code":"2@abc,def,ghi"}}`),
	})
	s := NewSender(time.Second, crypto.NewBox(""), nil)

	payload := s.GetConnectData(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "k"))
	require.NotNil(t, payload)
	assert.Equal(t, "instance/qrcode", payload.Source)
	assert.Equal(t, "2@abc,def,ghi", payload.Code)
	assert.True(t, strings.HasPrefix(payload.QRCode, "data:image/png;base64,"))

	require.Len(t, f.calls, 2)
	assert.Equal(t, "image=true", f.calls[1].Query)
}

func TestGetConnectDataPassesImagesThrough(t *testing.T) {
	_, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /session/connect": jsonReply(`{"success":true}`),
		"GET /session/qr":       jsonReply(`{"code":200,"data":{"QRCode":"data:image/png;base64,iVBORw0KGgo="},"success":true}`),
	})
	s := NewSender(time.Second, crypto.NewBox(""), nil)

	payload := s.GetConnectData(context.Background(), instance(tenant.ProviderWuzapi, srv.URL, "k"))
	require.NotNil(t, payload)
	assert.Equal(t, "session/qr", payload.Source)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", payload.QRCode)
}

func TestGetConnectDataNilWhenEverythingFails(t *testing.T) {
	_, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /instance/connect": jsonReply(`{"instance":{}}`),
	})
	s := NewSender(time.Second, crypto.NewBox(""), nil)
	assert.Nil(t, s.GetConnectData(context.Background(), instance(tenant.ProviderUazapi, srv.URL, "k")))
}

func TestSetWebhook(t *testing.T) {
	f, srv := newFakeProvider(t, map[string]func(http.ResponseWriter){
		"POST /webhook/set/acme": jsonReply(`{}`),
	})
	s := NewSender(time.Second, crypto.NewBox(""), nil)

	require.NoError(t, s.SetWebhook(context.Background(), instance(tenant.ProviderEvolution, srv.URL, "k"), "https://flow.example/webhook/whatsapp/t1?token=ABC123"))
	require.Len(t, f.calls, 1)
	hook := f.calls[0].Body["webhook"].(map[string]any)
	assert.Equal(t, "https://flow.example/webhook/whatsapp/t1?token=ABC123", hook["url"])

	var sendErr pkgError.SendError
	err := s.SetWebhook(context.Background(), instance(tenant.ProviderWuzapi, srv.URL, "k"), "https://x")
	assert.True(t, errors.As(err, &sendErr))
}

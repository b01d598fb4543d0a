package usecase

import (
	"context"
	"testing"

	domainInstance "github.com/AzielCF/az-flow/domains/instance"
	"github.com/AzielCF/az-flow/domains/tenant"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	status  tenant.InstanceStatus
	payload *domainInstance.ConnectionPayload
	hooked  string
	hookErr error
}

func (g *fakeGateway) GetConnectData(context.Context, tenant.WhatsAppInstance) *domainInstance.ConnectionPayload {
	return g.payload
}

func (g *fakeGateway) GetStatus(context.Context, tenant.WhatsAppInstance) tenant.InstanceStatus {
	return g.status
}

func (g *fakeGateway) SetWebhook(_ context.Context, _ tenant.WhatsAppInstance, url string) error {
	g.hooked = url
	return g.hookErr
}

func TestInstanceStatusIsStored(t *testing.T) {
	tenants := newFakeTenants()
	svc := NewInstanceService(tenants, &fakeGateway{status: tenant.InstanceConnected}, "")

	res, err := svc.Status(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, tenant.InstanceConnected, res.Status)
	assert.Equal(t, tenant.ProviderEvolution, res.Provider)
	assert.Equal(t, tenant.InstanceConnected, tenants.instances["t1"].Status)

	_, err = svc.Status(context.Background(), "ghost")
	var nfErr pkgError.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestInstanceConnect(t *testing.T) {
	tenants := newFakeTenants()
	gw := &fakeGateway{payload: &domainInstance.ConnectionPayload{Code: "2@abc", QRCode: "data:image/png;base64,xx", Source: "instance/connect"}}
	svc := NewInstanceService(tenants, gw, "")

	payload, err := svc.Connect(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "2@abc", payload.Code)
	assert.Equal(t, tenant.InstanceConnecting, tenants.instances["t1"].Status)

	gw.payload = nil
	_, err = svc.Connect(context.Background(), "t1")
	var sendErr pkgError.SendError
	assert.ErrorAs(t, err, &sendErr)
}

func TestInstanceConfigureWebhook(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewInstanceService(newFakeTenants(), gw, "/flow/")

	res, err := svc.ConfigureWebhook(context.Background(), "t1", "https://bot.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/flow/webhook/whatsapp/t1?token=ABC123", res.URL)
	assert.Equal(t, res.URL, gw.hooked)

	_, err = svc.ConfigureWebhook(context.Background(), "t1", "")
	var cfgErr pkgError.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

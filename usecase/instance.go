package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	domainInstance "github.com/AzielCF/az-flow/domains/instance"
	"github.com/AzielCF/az-flow/domains/tenant"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/validations"
	"github.com/sirupsen/logrus"
)

// InstanceGateway is the provider-facing side of a WhatsApp instance.
type InstanceGateway interface {
	GetConnectData(ctx context.Context, inst tenant.WhatsAppInstance) *domainInstance.ConnectionPayload
	GetStatus(ctx context.Context, inst tenant.WhatsAppInstance) tenant.InstanceStatus
	SetWebhook(ctx context.Context, inst tenant.WhatsAppInstance, url string) error
}

type instanceService struct {
	tenants  tenant.ITenantRepository
	gateway  InstanceGateway
	basePath string
}

func NewInstanceService(tenants tenant.ITenantRepository, gateway InstanceGateway, basePath string) domainInstance.IInstanceUsecase {
	return &instanceService{tenants: tenants, gateway: gateway, basePath: strings.TrimRight(basePath, "/")}
}

func (service *instanceService) Status(ctx context.Context, tenantID string) (domainInstance.StatusResponse, error) {
	inst, err := service.instance(ctx, tenantID)
	if err != nil {
		return domainInstance.StatusResponse{}, err
	}

	status := service.gateway.GetStatus(ctx, inst)
	if status != inst.Status {
		if err := service.tenants.UpdateInstanceStatus(ctx, tenantID, status); err != nil {
			logrus.WithError(err).WithField("tenant", tenantID).Warn("[INSTANCE] failed to store status")
		}
	}
	return domainInstance.StatusResponse{TenantID: tenantID, Provider: inst.Provider, Status: status}, nil
}

func (service *instanceService) Connect(ctx context.Context, tenantID string) (domainInstance.ConnectionPayload, error) {
	inst, err := service.instance(ctx, tenantID)
	if err != nil {
		return domainInstance.ConnectionPayload{}, err
	}

	payload := service.gateway.GetConnectData(ctx, inst)
	if payload == nil {
		return domainInstance.ConnectionPayload{}, pkgError.SendError(fmt.Sprintf("%s did not return connect data", inst.Provider))
	}

	next := tenant.InstanceConnecting
	if payload.Connected {
		next = tenant.InstanceConnected
	}
	if err := service.tenants.UpdateInstanceStatus(ctx, tenantID, next); err != nil {
		logrus.WithError(err).WithField("tenant", tenantID).Warn("[INSTANCE] failed to store status")
	}
	return *payload, nil
}

func (service *instanceService) ConfigureWebhook(ctx context.Context, tenantID, publicBaseURL string) (domainInstance.WebhookResponse, error) {
	if strings.TrimSpace(publicBaseURL) == "" {
		return domainInstance.WebhookResponse{}, pkgError.ConfigError("APP_BASE_URL is not set")
	}
	t, err := service.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return domainInstance.WebhookResponse{}, notFoundOr(err, "tenant "+tenantID)
	}
	if t.WebhookToken == "" {
		return domainInstance.WebhookResponse{}, pkgError.ConfigError("tenant has no webhook token")
	}
	inst, err := service.instance(ctx, tenantID)
	if err != nil {
		return domainInstance.WebhookResponse{}, err
	}

	target := WebhookURL(publicBaseURL, service.basePath, tenantID, t.WebhookToken)
	if err := service.gateway.SetWebhook(ctx, inst, target); err != nil {
		return domainInstance.WebhookResponse{}, err
	}
	logrus.WithFields(logrus.Fields{"tenant": tenantID, "provider": inst.Provider}).Info("[INSTANCE] webhook configured")
	return domainInstance.WebhookResponse{TenantID: tenantID, URL: target}, nil
}

func (service *instanceService) instance(ctx context.Context, tenantID string) (tenant.WhatsAppInstance, error) {
	if err := validations.ValidateTenantID(tenantID); err != nil {
		return tenant.WhatsAppInstance{}, err
	}
	inst, err := service.tenants.GetInstance(ctx, tenantID)
	if err != nil {
		return tenant.WhatsAppInstance{}, notFoundOr(err, "whatsapp instance of "+tenantID)
	}
	return inst, nil
}

// WebhookURL is the inbound address handed to providers.
func WebhookURL(publicBaseURL, basePath, tenantID, token string) string {
	return fmt.Sprintf("%s%s/webhook/whatsapp/%s?token=%s",
		strings.TrimRight(publicBaseURL, "/"), basePath, url.PathEscape(tenantID), url.QueryEscape(token))
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, tenant.ErrTenantNotFound) || errors.Is(err, tenant.ErrInstanceMissing) || errors.Is(err, tenant.ErrBotConfigMissing) {
		return pkgError.NotFoundError(what + " not found")
	}
	return err
}

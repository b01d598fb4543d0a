package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-flow/domains/tenant"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Models ---

type tenantModel struct {
	ID              string `gorm:"primaryKey"`
	Name            string `gorm:"not null"`
	CompanyName     string
	WebhookToken    string `gorm:"not null"`
	Status          string `gorm:"index;not null"`
	PixKey          string
	PaymentLinkBase string
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (tenantModel) TableName() string {
	return "tenants"
}

type botConfigModel struct {
	TenantID    string `gorm:"primaryKey"`
	EngineType  string `gorm:"not null"`
	Credentials string `gorm:"type:text"`
	Language    string
	UpdatedAt   time.Time `gorm:"not null"`
}

func (botConfigModel) TableName() string {
	return "bot_configs"
}

type instanceModel struct {
	TenantID   string `gorm:"primaryKey"`
	Provider   string `gorm:"not null"`
	BaseURL    string `gorm:"not null"`
	Token      string `gorm:"type:text"`
	InstanceID string
	Status     string    `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (instanceModel) TableName() string {
	return "whatsapp_instances"
}

// --- Repository Implementation ---

type TenantGormRepository struct {
	db *gorm.DB
}

func NewTenantGormRepository(db *gorm.DB) *TenantGormRepository {
	return &TenantGormRepository{db: db}
}

func (r *TenantGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&tenantModel{}, &botConfigModel{}, &instanceModel{})
}

func (r *TenantGormRepository) GetTenant(ctx context.Context, id string) (tenant.Tenant, error) {
	var m tenantModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tenant.Tenant{}, tenant.ErrTenantNotFound
		}
		return tenant.Tenant{}, pkgError.PersistenceError(fmt.Sprintf("get tenant %s: %v", id, err))
	}
	return fromTenantModel(m), nil
}

func (r *TenantGormRepository) GetBotConfig(ctx context.Context, tenantID string) (tenant.BotConfig, error) {
	var m botConfigModel
	if err := r.db.WithContext(ctx).First(&m, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tenant.BotConfig{}, tenant.ErrBotConfigMissing
		}
		return tenant.BotConfig{}, pkgError.PersistenceError(fmt.Sprintf("get bot config %s: %v", tenantID, err))
	}
	return fromBotConfigModel(m), nil
}

func (r *TenantGormRepository) GetInstance(ctx context.Context, tenantID string) (tenant.WhatsAppInstance, error) {
	var m instanceModel
	if err := r.db.WithContext(ctx).First(&m, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tenant.WhatsAppInstance{}, tenant.ErrInstanceMissing
		}
		return tenant.WhatsAppInstance{}, pkgError.PersistenceError(fmt.Sprintf("get instance %s: %v", tenantID, err))
	}
	return fromInstanceModel(m), nil
}

// EnsureBotConfig creates the tenant's bot config lazily on first configuration.
func (r *TenantGormRepository) EnsureBotConfig(ctx context.Context, tenantID string, engine tenant.EngineType) (tenant.BotConfig, error) {
	m := botConfigModel{TenantID: tenantID, EngineType: string(engine), UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tenant_id"}}, DoNothing: true}).
		Create(&m).Error
	if err != nil {
		return tenant.BotConfig{}, pkgError.PersistenceError(fmt.Sprintf("ensure bot config %s: %v", tenantID, err))
	}
	return r.GetBotConfig(ctx, tenantID)
}

func (r *TenantGormRepository) UpdateInstanceStatus(ctx context.Context, tenantID string, status tenant.InstanceStatus) error {
	res := r.db.WithContext(ctx).Model(&instanceModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return pkgError.PersistenceError(fmt.Sprintf("update instance status %s: %v", tenantID, res.Error))
	}
	if res.RowsAffected == 0 {
		return tenant.ErrInstanceMissing
	}
	return nil
}

// Upserts used by seeding and the external CRUD surface.

func (r *TenantGormRepository) SaveTenant(ctx context.Context, t *tenant.Tenant) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m := toTenantModel(*t)
	return r.db.WithContext(ctx).Save(&m).Error
}

func (r *TenantGormRepository) SaveBotConfig(ctx context.Context, c *tenant.BotConfig) error {
	c.UpdatedAt = time.Now().UTC()
	m := botConfigModel{
		TenantID:    c.TenantID,
		EngineType:  string(c.EngineType),
		Credentials: c.Credentials,
		Language:    c.Language,
		UpdatedAt:   c.UpdatedAt,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

func (r *TenantGormRepository) SaveInstance(ctx context.Context, inst *tenant.WhatsAppInstance) error {
	inst.UpdatedAt = time.Now().UTC()
	if inst.Status == "" {
		inst.Status = tenant.InstanceDisconnected
	}
	m := instanceModel{
		TenantID:   inst.TenantID,
		Provider:   string(inst.Provider),
		BaseURL:    inst.BaseURL,
		Token:      inst.Token,
		InstanceID: inst.InstanceID,
		Status:     string(inst.Status),
		UpdatedAt:  inst.UpdatedAt,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

// --- Mappers ---

func toTenantModel(t tenant.Tenant) tenantModel {
	return tenantModel{
		ID:              t.ID,
		Name:            t.Name,
		CompanyName:     t.CompanyName,
		WebhookToken:    t.WebhookToken,
		Status:          string(t.Status),
		PixKey:          t.PixKey,
		PaymentLinkBase: t.PaymentLinkBase,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func fromTenantModel(m tenantModel) tenant.Tenant {
	return tenant.Tenant{
		ID:              m.ID,
		Name:            m.Name,
		CompanyName:     m.CompanyName,
		WebhookToken:    m.WebhookToken,
		Status:          tenant.Status(m.Status),
		PixKey:          m.PixKey,
		PaymentLinkBase: m.PaymentLinkBase,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func fromBotConfigModel(m botConfigModel) tenant.BotConfig {
	return tenant.BotConfig{
		TenantID:    m.TenantID,
		EngineType:  tenant.EngineType(m.EngineType),
		Credentials: m.Credentials,
		Language:    m.Language,
		UpdatedAt:   m.UpdatedAt,
	}
}

func fromInstanceModel(m instanceModel) tenant.WhatsAppInstance {
	return tenant.WhatsAppInstance{
		TenantID:   m.TenantID,
		Provider:   tenant.Provider(m.Provider),
		BaseURL:    m.BaseURL,
		Token:      m.Token,
		InstanceID: m.InstanceID,
		Status:     tenant.InstanceStatus(m.Status),
		UpdatedAt:  m.UpdatedAt,
	}
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-flow/domains/reminder"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type dispatchLogModel struct {
	ID         string    `gorm:"primaryKey"`
	TenantID   string    `gorm:"index;not null"`
	RuleID     string    `gorm:"index;not null"`
	CustomerID string    `gorm:"index;not null"`
	Slot       string    `gorm:"size:5"`
	Status     string    `gorm:"not null"`
	Error      string    `gorm:"type:text"`
	SentAt     time.Time `gorm:"index;not null"`
}

func (dispatchLogModel) TableName() string {
	return "reminder_dispatch_logs"
}

type DispatchLogGormRepository struct {
	db *gorm.DB
}

func NewDispatchLogGormRepository(db *gorm.DB) *DispatchLogGormRepository {
	return &DispatchLogGormRepository{db: db}
}

func (r *DispatchLogGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&dispatchLogModel{})
}

func (r *DispatchLogGormRepository) Record(ctx context.Context, log reminder.DispatchLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.SentAt.IsZero() {
		log.SentAt = time.Now()
	}
	m := dispatchLogModel{
		ID:         log.ID,
		TenantID:   log.TenantID,
		RuleID:     log.RuleID,
		CustomerID: log.CustomerID,
		Slot:       log.Slot,
		Status:     string(log.Status),
		Error:      log.Error,
		SentAt:     log.SentAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return pkgError.PersistenceError(fmt.Sprintf("record dispatch: %v", err))
	}
	return nil
}

// ListForCustomer returns the audit trail of one customer, newest first.
func (r *DispatchLogGormRepository) ListForCustomer(ctx context.Context, tenantID, customerID string) ([]reminder.DispatchLog, error) {
	var rows []dispatchLogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgError.PersistenceError(fmt.Sprintf("list dispatches: %v", err))
	}
	out := make([]reminder.DispatchLog, 0, len(rows))
	for _, m := range rows {
		out = append(out, reminder.DispatchLog{
			ID:         m.ID,
			TenantID:   m.TenantID,
			RuleID:     m.RuleID,
			CustomerID: m.CustomerID,
			Slot:       m.Slot,
			Status:     reminder.DispatchStatus(m.Status),
			Error:      m.Error,
			SentAt:     m.SentAt,
		})
	}
	return out, nil
}

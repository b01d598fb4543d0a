package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-flow/domains/session"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type chatSessionModel struct {
	ID              string    `gorm:"primaryKey"`
	TenantID        string    `gorm:"uniqueIndex:idx_chat_sessions_tenant_jid,priority:1;not null"`
	RemoteJid       string    `gorm:"uniqueIndex:idx_chat_sessions_tenant_jid,priority:2;not null"`
	IsBotActive     bool      `gorm:"not null"`
	BotSessionID    string    `gorm:"type:text"`
	LastInteraction time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (chatSessionModel) TableName() string {
	return "chat_sessions"
}

// SessionGormRepository is the default ChatSession store. Concurrent creation of the
// same conversation is resolved by the (tenant_id, remote_jid) unique index.
type SessionGormRepository struct {
	db *gorm.DB
}

func NewSessionGormRepository(db *gorm.DB) *SessionGormRepository {
	return &SessionGormRepository{db: db}
}

func (r *SessionGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&chatSessionModel{})
}

func (r *SessionGormRepository) GetOrCreate(ctx context.Context, tenantID, remoteJid string) (session.ChatSession, error) {
	m, err := r.find(ctx, tenantID, remoteJid)
	if err == nil {
		return fromSessionModel(m), nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		return session.ChatSession{}, err
	}

	now := time.Now().UTC()
	m = chatSessionModel{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		RemoteJid:       remoteJid,
		IsBotActive:     true,
		LastInteraction: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "remote_jid"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return session.ChatSession{}, pkgError.PersistenceError(fmt.Sprintf("create session: %v", res.Error))
	}
	if res.RowsAffected == 0 {
		// another delivery created it first
		m, err = r.find(ctx, tenantID, remoteJid)
		if err != nil {
			return session.ChatSession{}, err
		}
	}
	return fromSessionModel(m), nil
}

func (r *SessionGormRepository) Touch(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&chatSessionModel{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{"last_interaction": now, "updated_at": now})
	if res.Error != nil {
		return pkgError.PersistenceError(fmt.Sprintf("touch session: %v", res.Error))
	}
	if res.RowsAffected == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (r *SessionGormRepository) SetBotActive(ctx context.Context, tenantID, remoteJid string, active bool) (session.ChatSession, error) {
	s, err := r.GetOrCreate(ctx, tenantID, remoteJid)
	if err != nil {
		return session.ChatSession{}, err
	}
	if s.IsBotActive == active {
		return s, nil
	}
	if err := r.update(ctx, s.ID, map[string]any{"is_bot_active": active}); err != nil {
		return session.ChatSession{}, err
	}
	s.IsBotActive = active
	return s, nil
}

func (r *SessionGormRepository) SetContinuationToken(ctx context.Context, tenantID, remoteJid, token string) error {
	s, err := r.GetOrCreate(ctx, tenantID, remoteJid)
	if err != nil {
		return err
	}
	return r.update(ctx, s.ID, map[string]any{"bot_session_id": token})
}

func (r *SessionGormRepository) find(ctx context.Context, tenantID, remoteJid string) (chatSessionModel, error) {
	var m chatSessionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND remote_jid = ?", tenantID, remoteJid).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return m, session.ErrSessionNotFound
		}
		return m, pkgError.PersistenceError(fmt.Sprintf("find session: %v", err))
	}
	return m, nil
}

func (r *SessionGormRepository) update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&chatSessionModel{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return pkgError.PersistenceError(fmt.Sprintf("update session %s: %v", id, err))
	}
	return nil
}

func fromSessionModel(m chatSessionModel) session.ChatSession {
	return session.ChatSession{
		ID:              m.ID,
		TenantID:        m.TenantID,
		RemoteJid:       m.RemoteJid,
		IsBotActive:     m.IsBotActive,
		BotSessionID:    m.BotSessionID,
		LastInteraction: m.LastInteraction,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

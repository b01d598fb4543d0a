package session

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("chat session not found")

// ChatSession tracks one conversation (tenant, remoteJid). IsBotActive is the
// only gate between an inbound message and the conversational engine.
type ChatSession struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	RemoteJid       string    `json:"remote_jid"`
	IsBotActive     bool      `json:"is_bot_active"`
	BotSessionID    string    `json:"bot_session_id,omitempty"`
	LastInteraction time.Time `json:"last_interaction"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// State names the handoff state of a session.
type State string

const (
	StateNew         State = "NEW"
	StateBotActive   State = "BOT_ACTIVE"
	StateHumanActive State = "HUMAN_ACTIVE"
)

func (s ChatSession) State() State {
	if s.ID == "" {
		return StateNew
	}
	if s.IsBotActive {
		return StateBotActive
	}
	return StateHumanActive
}

// ISessionStore persists ChatSessions. Implementations must keep (tenantID, remoteJid) unique.
type ISessionStore interface {
	GetOrCreate(ctx context.Context, tenantID, remoteJid string) (ChatSession, error)
	Touch(ctx context.Context, sessionID string) error
	SetBotActive(ctx context.Context, tenantID, remoteJid string, active bool) (ChatSession, error)
	SetContinuationToken(ctx context.Context, tenantID, remoteJid, token string) error
}

// HandoffRequest toggles a conversation between bot and human.
type HandoffRequest struct {
	RemoteJid string `json:"remote_jid"`
	BotActive *bool  `json:"bot_active"`
}

type IHandoffUsecase interface {
	SetBotActive(ctx context.Context, tenantID string, req HandoffRequest) (ChatSession, error)
}

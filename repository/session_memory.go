package repository

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-flow/domains/session"
	"github.com/google/uuid"
)

// MemorySessionStore keeps ChatSessions in process memory. Data is lost on restart;
// used by tests and single-node development (SESSION_BACKEND=memory).
type MemorySessionStore struct {
	mu    sync.RWMutex
	byKey map[string]*session.ChatSession
	byID  map[string]string
	nowFn func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byKey: make(map[string]*session.ChatSession),
		byID:  make(map[string]string),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func memoryKey(tenantID, remoteJid string) string {
	return tenantID + "|" + remoteJid
}

func (ms *MemorySessionStore) GetOrCreate(ctx context.Context, tenantID, remoteJid string) (session.ChatSession, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return *ms.getOrCreateLocked(tenantID, remoteJid), nil
}

func (ms *MemorySessionStore) getOrCreateLocked(tenantID, remoteJid string) *session.ChatSession {
	key := memoryKey(tenantID, remoteJid)
	if s, ok := ms.byKey[key]; ok {
		return s
	}
	now := ms.nowFn()
	s := &session.ChatSession{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		RemoteJid:       remoteJid,
		IsBotActive:     true,
		LastInteraction: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ms.byKey[key] = s
	ms.byID[s.ID] = key
	return s
}

func (ms *MemorySessionStore) Touch(ctx context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key, ok := ms.byID[sessionID]
	if !ok {
		return session.ErrSessionNotFound
	}
	now := ms.nowFn()
	s := ms.byKey[key]
	s.LastInteraction = now
	s.UpdatedAt = now
	return nil
}

func (ms *MemorySessionStore) SetBotActive(ctx context.Context, tenantID, remoteJid string, active bool) (session.ChatSession, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := ms.getOrCreateLocked(tenantID, remoteJid)
	if s.IsBotActive != active {
		s.IsBotActive = active
		s.UpdatedAt = ms.nowFn()
	}
	return *s, nil
}

func (ms *MemorySessionStore) SetContinuationToken(ctx context.Context, tenantID, remoteJid, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := ms.getOrCreateLocked(tenantID, remoteJid)
	s.BotSessionID = token
	s.UpdatedAt = ms.nowFn()
	return nil
}

// Get returns a copy of a stored session, if any.
func (ms *MemorySessionStore) Get(tenantID, remoteJid string) (session.ChatSession, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, ok := ms.byKey[memoryKey(tenantID, remoteJid)]
	if !ok {
		return session.ChatSession{}, false
	}
	return *s, true
}

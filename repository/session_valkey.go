package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AzielCF/az-flow/domains/session"
	"github.com/AzielCF/az-flow/infrastructure/valkey"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/google/uuid"
	valkeylib "github.com/valkey-io/valkey-go"
)

// ValkeySessionStore keeps ChatSessions in Valkey so several API nodes share handoff state.
// Layout:
//
//	<prefix>chat:<tenant>:<jid>  -> JSON ChatSession
//	<prefix>chat-id:<id>         -> <prefix>chat:<tenant>:<jid>
//
// Keys never expire; a conversation in human mode must stay there until an operator flips it.
type ValkeySessionStore struct {
	client *valkey.Client
	nowFn  func() time.Time
}

func NewValkeySessionStore(client *valkey.Client) *ValkeySessionStore {
	return &ValkeySessionStore{
		client: client,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *ValkeySessionStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeySessionStore) chatKey(tenantID, remoteJid string) string {
	return s.client.Key("chat", tenantID, remoteJid)
}

func (s *ValkeySessionStore) idKey(id string) string {
	return s.client.Key("chat-id", id)
}

func (s *ValkeySessionStore) GetOrCreate(ctx context.Context, tenantID, remoteJid string) (session.ChatSession, error) {
	key := s.chatKey(tenantID, remoteJid)
	existing, found, err := s.load(ctx, key)
	if err != nil {
		return session.ChatSession{}, err
	}
	if found {
		return existing, nil
	}

	now := s.nowFn()
	fresh := session.ChatSession{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		RemoteJid:       remoteJid,
		IsBotActive:     true,
		LastInteraction: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	data, err := json.Marshal(fresh)
	if err != nil {
		return session.ChatSession{}, fmt.Errorf("failed to marshal session: %w", err)
	}

	cmd := s.inner().B().Set().Key(key).Value(string(data)).Nx().Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		if valkeylib.IsValkeyNil(err) {
			// lost the race, read the winner
			winner, ok, lerr := s.load(ctx, key)
			if lerr != nil {
				return session.ChatSession{}, lerr
			}
			if ok {
				return winner, nil
			}
		}
		return session.ChatSession{}, pkgError.PersistenceError(fmt.Sprintf("create session: %v", err))
	}

	idx := s.inner().B().Set().Key(s.idKey(fresh.ID)).Value(key).Build()
	if err := s.inner().Do(ctx, idx).Error(); err != nil {
		return session.ChatSession{}, pkgError.PersistenceError(fmt.Sprintf("index session: %v", err))
	}
	return fresh, nil
}

func (s *ValkeySessionStore) Touch(ctx context.Context, sessionID string) error {
	key, err := s.inner().Do(ctx, s.inner().B().Get().Key(s.idKey(sessionID)).Build()).ToString()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return session.ErrSessionNotFound
		}
		return pkgError.PersistenceError(fmt.Sprintf("touch session: %v", err))
	}
	current, found, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return session.ErrSessionNotFound
	}
	now := s.nowFn()
	current.LastInteraction = now
	current.UpdatedAt = now
	return s.save(ctx, key, current)
}

func (s *ValkeySessionStore) SetBotActive(ctx context.Context, tenantID, remoteJid string, active bool) (session.ChatSession, error) {
	current, err := s.GetOrCreate(ctx, tenantID, remoteJid)
	if err != nil {
		return session.ChatSession{}, err
	}
	if current.IsBotActive == active {
		return current, nil
	}
	current.IsBotActive = active
	current.UpdatedAt = s.nowFn()
	if err := s.save(ctx, s.chatKey(tenantID, remoteJid), current); err != nil {
		return session.ChatSession{}, err
	}
	return current, nil
}

func (s *ValkeySessionStore) SetContinuationToken(ctx context.Context, tenantID, remoteJid, token string) error {
	current, err := s.GetOrCreate(ctx, tenantID, remoteJid)
	if err != nil {
		return err
	}
	current.BotSessionID = token
	current.UpdatedAt = s.nowFn()
	return s.save(ctx, s.chatKey(tenantID, remoteJid), current)
}

func (s *ValkeySessionStore) load(ctx context.Context, key string) (session.ChatSession, bool, error) {
	data, err := s.inner().Do(ctx, s.inner().B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return session.ChatSession{}, false, nil
		}
		return session.ChatSession{}, false, pkgError.PersistenceError(fmt.Sprintf("get session: %v", err))
	}
	var out session.ChatSession
	if err := json.Unmarshal(data, &out); err != nil {
		return session.ChatSession{}, false, pkgError.PersistenceError(fmt.Sprintf("decode session: %v", err))
	}
	return out, true, nil
}

func (s *ValkeySessionStore) save(ctx context.Context, key string, value session.ChatSession) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.inner().Do(ctx, s.inner().B().Set().Key(key).Value(string(data)).Build()).Error(); err != nil {
		return pkgError.PersistenceError(fmt.Sprintf("save session: %v", err))
	}
	return nil
}

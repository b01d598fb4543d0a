package botengine

import (
	"sync"
)

type ChatTurn struct {
	Role string // "user" | "assistant"
	Text string
}

// MemoryStore keeps a short per-conversation history for stateless engines.
type MemoryStore struct {
	mu     sync.RWMutex
	memory map[string][]ChatTurn // key: tenant|remoteJid
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memory: make(map[string][]ChatTurn),
	}
}

func ConversationKey(tenantID, remoteJid string) string {
	return tenantID + "|" + remoteJid
}

func (s *MemoryStore) Get(key string) []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if turns, ok := s.memory[key]; ok {
		cpy := make([]ChatTurn, len(turns))
		copy(cpy, turns)
		return cpy
	}
	return nil
}

// Append adds turns and keeps only the newest limit entries (0 keeps everything).
func (s *MemoryStore) Append(key string, limit int, turns ...ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append(s.memory[key], turns...)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	s.memory[key] = all
}

func (s *MemoryStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memory, key)
}

package store

import (
	"context"
	"sync"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
)

// memoryStore keeps logs in process memory. Appends are append-only under the
// write lock, so concurrent readers never observe a partial entry.
type memoryStore struct {
	mu   sync.RWMutex
	logs map[string][]conversations.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{logs: make(map[string][]conversations.Message)}
}

func (s *memoryStore) Load(_ context.Context, userID string) ([]conversations.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := make([]conversations.Message, len(s.logs[userID]))
	copy(log, s.logs[userID])
	return log, nil
}

func (s *memoryStore) Append(_ context.Context, userID string, message conversations.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[userID] = append(s.logs[userID], message)
	return nil
}

func (s *memoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.logs, userID)
	return nil
}

func (s *memoryStore) Close() error { return nil }

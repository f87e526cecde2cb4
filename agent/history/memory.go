package history

import (
	"context"
	"sync"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

// MemoryStore keeps history in process. Used by the local chat loop and
// tests.
type MemoryStore struct {
	mu         sync.RWMutex
	maxEntries int
	entries    map[string][]contractx.Entry
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string][]contractx.Entry),
	}
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) ([]contractx.Entry, error) {
	id, err := validConversation(conversationID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contractx.Entry(nil), s.entries[id]...), nil
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, entries ...contractx.Entry) error {
	id, err := validConversation(conversationID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = keepLast(append(s.entries[id], entries...), s.maxEntries)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, conversationID string) error {
	id, err := validConversation(conversationID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

package memory

import (
	"sync"

	"github.com/glancehq/glance-relay/internal/domain"
)

// ContextStore is the in-process registry of conversation contexts.
// It is NOT persistent: contexts live only as long as their connection.
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[domain.ConnectionID]*domain.ConversationContext
}

func NewContextStore() *ContextStore {
	return &ContextStore{
		contexts: make(map[domain.ConnectionID]*domain.ConversationContext),
	}
}

// Create registers a fresh context for id, replacing any stale entry.
func (s *ContextStore) Create(id domain.ConnectionID) *domain.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := &domain.ConversationContext{ConnectionID: id}
	s.contexts[id] = ctx
	return ctx
}

func (s *ContextStore) Get(id domain.ConnectionID) (*domain.ConversationContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, ok := s.contexts[id]
	return ctx, ok
}

// Delete removes the context for id. Deleting an absent id is a no-op,
// so close/error/timeout paths can all call it safely.
func (s *ContextStore) Delete(id domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, id)
}

// Len reports the number of live contexts.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.contexts)
}

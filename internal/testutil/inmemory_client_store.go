package testutil

import (
	"context"
	"sync"

	"github.com/ledgerline/ledgerline/internal/domain/client"
)

// InMemoryClientStore implements the read-only client.Repository
type InMemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]*client.Client
}

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		clients: make(map[string]*client.Client),
	}
}

// Add seeds a client for tests
func (s *InMemoryClientStore) Add(c *client.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.clients[id]
	if !exists {
		return nil, notFound("client")
	}
	copy := *c
	return &copy, nil
}

func (s *InMemoryClientStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[string]*client.Client)
}

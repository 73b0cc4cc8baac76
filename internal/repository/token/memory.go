package token

import (
	"context"
	"sync"
	"time"

	"pkstore/internal/domain"
)

type memoryRepo struct {
	mu     sync.RWMutex
	tokens map[string]Token
	now    func() time.Time
}

// NewMemory keeps tokens in process memory. Used when no Redis is configured.
func NewMemory() Repository {
	return &memoryRepo{tokens: make(map[string]Token), now: time.Now}
}

func (m *memoryRepo) Create(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.tokens[t.Token]; ok && !old.Expired(m.now()) {
		return domain.ErrAlreadyExists
	}
	m.tokens[t.Token] = copyToken(t)
	return nil
}

func (m *memoryRepo) Get(_ context.Context, token string) (*Token, error) {
	m.mu.RLock()
	t, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Expired(m.now()) {
		m.mu.Lock()
		delete(m.tokens, token)
		m.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	out := copyToken(t)
	return &out, nil
}

func (m *memoryRepo) Update(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tokens[t.Token]
	if !ok || old.Expired(m.now()) {
		return domain.ErrNotFound
	}
	next := copyToken(t)
	next.ExpiresAt = old.ExpiresAt
	next.CreatedAt = old.CreatedAt
	m.tokens[t.Token] = next
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

func copyToken(t Token) Token {
	if t.Session != nil {
		s := *t.Session
		t.Session = &s
	}
	t.State = t.State.Clone()
	return t
}

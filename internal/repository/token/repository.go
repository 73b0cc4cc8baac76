package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"pkstore/internal/domain"
	"pkstore/internal/identity"
)

// Token binds an opaque browser session token to the identity signed in under it, if any,
// and to the browsing state a reopened store resumes from.
type Token struct {
	Token     string            `json:"token"`
	Session   *identity.Session `json:"session,omitempty"`
	State     *State            `json:"state,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
	CreatedAt time.Time         `json:"createdAt"`
}

// State is the part of a session's read model that outlives its store.
type State struct {
	Favorites   []string       `json:"favorites,omitempty"`
	Orders      []domain.Order `json:"orders,omitempty"`
	LastOrder   *domain.Order  `json:"lastOrder,omitempty"`
	SearchQuery string         `json:"searchQuery,omitempty"`
}

// Clone copies the state including order snapshots.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Favorites:   append([]string(nil), s.Favorites...),
		SearchQuery: s.SearchQuery,
	}
	if s.Orders != nil {
		out.Orders = make([]domain.Order, len(s.Orders))
		for i, o := range s.Orders {
			out.Orders[i] = o.Clone()
		}
	}
	if s.LastOrder != nil {
		o := s.LastOrder.Clone()
		out.LastOrder = &o
	}
	return out
}

// Expired reports whether the token is no longer valid at now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

type Repository interface {
	// Create fails with domain.ErrAlreadyExists if the token is taken.
	Create(ctx context.Context, token Token) error
	// Get fails with domain.ErrNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*Token, error)
	// Update replaces the stored session and keeps the expiry.
	Update(ctx context.Context, token Token) error
	Delete(ctx context.Context, token string) error
}

// New returns a random URL-safe token.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

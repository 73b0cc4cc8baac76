// Package identity adapts a sign-in provider to the Identity shape used by the store.
package identity

import (
	"context"

	"pkstore/internal/domain"
)

// FallbackName is used when the provider supplies no usable name.
const FallbackName = "User"

// Session is the raw session object reported by a provider.
type Session struct {
	UID          string `json:"uid"`
	ProfileName  string `json:"profileName,omitempty"`
	DisplayLabel string `json:"displayLabel,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Provider is the identity adapter consumed by the store.
type Provider interface {
	CurrentSession() *Session
	// OnSessionChange registers fn and immediately replays the current session to it.
	// fn must not call back into the provider.
	OnSessionChange(fn func(*Session)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// Project converts a raw session into an Identity; a nil session projects to nil.
func Project(s *Session) *domain.Identity {
	if s == nil {
		return nil
	}
	name := s.ProfileName
	if name == "" {
		name = s.DisplayLabel
	}
	if name == "" {
		name = FallbackName
	}
	return &domain.Identity{
		ID:    s.UID,
		Name:  name,
		Email: s.Email,
	}
}

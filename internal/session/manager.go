// Package session maps browser session tokens to their identity provider and store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"pkstore/internal/domain"
	"pkstore/internal/identity"
	"pkstore/internal/observe"
	productrepo "pkstore/internal/repository/product"
	"pkstore/internal/repository/token"
	"pkstore/internal/store"
)

const opPersist = "session_persist"

// Session is one browser session: a store bound to its own identity provider.
type Session struct {
	Token     string
	Store     *store.Store
	ExpiresAt time.Time

	provider *identity.LocalProvider
	tokens   token.Repository
	sink     observe.Sink

	mu       sync.Mutex
	lastSeen time.Time
}

// SignIn starts a named identity and records it under the token.
func (s *Session) SignIn(ctx context.Context, name, email string) error {
	s.provider.SignIn(name, email)
	return s.persist(ctx)
}

// SignInGuest starts a guest identity for checkout without an account.
func (s *Session) SignInGuest(ctx context.Context, name string) error {
	s.provider.SignInGuest(name)
	return s.persist(ctx)
}

// SignOut ends the identity. Favorites are cleared, order history is kept.
// If the token cannot be updated the failure is reported; the next successful save
// (at the latest when the store is evicted) records the signed-out state.
func (s *Session) SignOut(ctx context.Context) error {
	s.Store.SignOut(ctx)
	return s.persist(ctx)
}

func (s *Session) Identity() *domain.Identity {
	return s.Store.Snapshot().Identity
}

func (s *Session) Product(id string) (domain.Product, bool) {
	return s.Store.Product(id)
}

func (s *Session) PlaceOrder(p domain.Product, customerName string) domain.Order {
	return s.Store.PlaceOrder(p, customerName)
}

// persist writes the identity and the browsing state under the token.
func (s *Session) persist(ctx context.Context) error {
	r := s.Store.Snapshot().Resume()
	err := s.tokens.Update(ctx, token.Token{
		Token:   s.Token,
		Session: s.provider.CurrentSession(),
		State: &token.State{
			Favorites:   r.Favorites,
			Orders:      r.Orders,
			LastOrder:   r.LastOrder,
			SearchQuery: r.SearchQuery,
		},
	})
	if err != nil {
		err = fmt.Errorf("persist session: %w", err)
		s.sink.Report(ctx, opPersist, err)
		return err
	}
	return nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type Options struct {
	Products productrepo.Repository
	Tokens   token.Repository
	Sink     observe.Sink
	Logger   zerolog.Logger
	// TTL is the lifetime of an issued token, Idle the inactivity after which a live store is closed.
	TTL          time.Duration
	Idle         time.Duration
	WriteTimeout time.Duration
	Now          func() time.Time
}

// Manager owns every open store. Stores are opened lazily and closed on idle eviction or Close.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Idle <= 0 {
		opts.Idle = 30 * time.Minute
	}
	if opts.Sink == nil {
		opts.Sink = observe.Nop{}
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Resolve returns the session for raw, opening its store if needed. An empty, unknown or expired
// token gets a fresh one; created reports that case so the caller can hand the new token out.
// Token lookups and writes happen outside the manager lock.
func (m *Manager) Resolve(ctx context.Context, raw string) (sess *Session, created bool, err error) {
	now := m.opts.Now()
	if s, err := m.cached(raw, now); s != nil || err != nil {
		return s, false, err
	}

	if raw != "" {
		tok, err := m.opts.Tokens.Get(ctx, raw)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("lookup session token: %w", err)
		}
		if err == nil && !tok.Expired(now) {
			s, err := m.open(ctx, *tok, now)
			if err != nil {
				return nil, false, err
			}
			return s, false, nil
		}
	}

	value, err := token.New()
	if err != nil {
		return nil, false, fmt.Errorf("generate session token: %w", err)
	}
	tok := token.Token{Token: value, ExpiresAt: now.Add(m.opts.TTL), CreatedAt: now}
	if err := m.opts.Tokens.Create(ctx, tok); err != nil {
		return nil, false, fmt.Errorf("create session token: %w", err)
	}
	s, err := m.open(ctx, tok, now)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (m *Manager) cached(raw string, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.ErrClosed
	}
	s, ok := m.sessions[raw]
	if !ok || !now.Before(s.ExpiresAt) {
		return nil, nil
	}
	s.touch(now)
	return s, nil
}

// open registers a store for tok. A live store opened concurrently for the same token wins.
func (m *Manager) open(ctx context.Context, tok token.Token, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.ErrClosed
	}
	if cur, ok := m.sessions[tok.Token]; ok {
		if now.Before(cur.ExpiresAt) {
			cur.touch(now)
			return cur, nil
		}
		cur.Store.Close()
		delete(m.sessions, tok.Token)
	}

	provider := identity.NewLocalProvider()
	if tok.Session != nil {
		provider.Restore(*tok.Session)
	}
	var resume *store.Resume
	if st := tok.State; st != nil {
		resume = &store.Resume{
			Favorites:   st.Favorites,
			Orders:      st.Orders,
			LastOrder:   st.LastOrder,
			SearchQuery: st.SearchQuery,
		}
	}
	st, err := store.Open(ctx, store.Deps{
		Products:     m.opts.Products,
		Identity:     provider,
		Sink:         m.opts.Sink,
		Logger:       m.opts.Logger.With().Str("session", shortToken(tok.Token)).Logger(),
		WriteTimeout: m.opts.WriteTimeout,
		Resume:       resume,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Session{
		Token:     tok.Token,
		Store:     st,
		ExpiresAt: tok.ExpiresAt,
		provider:  provider,
		tokens:    m.opts.Tokens,
		sink:      m.opts.Sink,
		lastSeen:  now,
	}
	m.sessions[tok.Token] = s
	m.opts.Sink.Observe("session_opened")
	return s, nil
}

func (m *Manager) stale(s *Session, now time.Time) bool {
	return s.idleSince(now) >= m.opts.Idle || !now.Before(s.ExpiresAt)
}

// Evict closes stores idle for longer than the idle timeout or past their token expiry.
// An idle store's state is saved with its token first, so a later Resolve resumes it.
// A store whose state cannot be saved stays open until the next pass.
func (m *Manager) Evict(ctx context.Context) int {
	now := m.opts.Now()
	m.mu.Lock()
	var candidates []*Session
	for _, s := range m.sessions {
		if m.stale(s, now) {
			candidates = append(candidates, s)
		}
	}
	m.mu.Unlock()

	var evicted []*Session
	for _, s := range candidates {
		if now.Before(s.ExpiresAt) {
			if err := s.persist(ctx); err != nil {
				m.opts.Logger.Warn().Err(err).Str("session", shortToken(s.Token)).Msg("session manager: state not saved, keeping store open")
				continue
			}
		}
		m.mu.Lock()
		if cur, ok := m.sessions[s.Token]; ok && cur == s && m.stale(s, now) {
			delete(m.sessions, s.Token)
			evicted = append(evicted, s)
		}
		m.mu.Unlock()
	}

	for _, s := range evicted {
		s.Store.Close()
		m.opts.Sink.Observe("session_evicted")
	}
	if len(evicted) > 0 {
		m.opts.Logger.Info().Int("count", len(evicted)).Msg("session manager: evicted idle sessions")
	}
	return len(evicted)
}

// Run evicts idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	interval := max(m.opts.Idle/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Evict(ctx)
		}
	}
}

// Len is the number of open stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every store and saves the state of those whose token is still valid.
// Resolve fails with domain.ErrClosed afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	now := m.opts.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.WriteTimeout)
	defer cancel()
	for _, s := range sessions {
		s.Store.Close()
		if !now.Before(s.ExpiresAt) {
			continue
		}
		if err := s.persist(ctx); err != nil {
			m.opts.Logger.Warn().Err(err).Str("session", shortToken(s.Token)).Msg("session manager: state not saved on close")
		}
	}
}

func shortToken(t string) string {
	if len(t) > 8 {
		return t[:8]
	}
	return t
}

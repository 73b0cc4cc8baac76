package identity

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// LocalProvider is an in-process identity provider holding at most one session.
type LocalProvider struct {
	mu        sync.Mutex
	current   *Session
	listeners map[int]func(*Session)
	nextID    int
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{listeners: make(map[int]func(*Session))}
}

func (p *LocalProvider) CurrentSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copySession(p.current)
}

func (p *LocalProvider) OnSessionChange(fn func(*Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	fn(copySession(p.current))
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SignIn starts a session for a named user.
func (p *LocalProvider) SignIn(name, email string) *Session {
	s := &Session{UID: uuid.NewString(), ProfileName: name, Email: email}
	p.set(s)
	return copySession(s)
}

// SignInGuest starts a session for a checkout customer without an account.
func (p *LocalProvider) SignInGuest(name string) *Session {
	s := &Session{UID: "guest-" + uuid.NewString(), DisplayLabel: name}
	p.set(s)
	return copySession(s)
}

// Restore reinstates a previously issued session, e.g. after a restart.
func (p *LocalProvider) Restore(s Session) {
	p.set(&s)
}

func (p *LocalProvider) SignOut(context.Context) error {
	p.set(nil)
	return nil
}

// set replaces the session and notifies listeners in registration order under the lock,
// so notifications are never reordered.
func (p *LocalProvider) set(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = copySession(s)
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p.listeners[id](copySession(p.current))
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

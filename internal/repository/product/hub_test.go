package product

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkstore/internal/domain"
)

// fakeUpstream hands out one subscription at a time and lets the test drive it.
type fakeUpstream struct {
	Repository
	mu         sync.Mutex
	onPush     func(Snapshot)
	onError    func(error)
	subscribed chan struct{}
	released   int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{subscribed: make(chan struct{}, 4)}
}

func (f *fakeUpstream) Subscribe(_ context.Context, onPush func(Snapshot), onError func(error)) (CancelFunc, error) {
	f.mu.Lock()
	f.onPush, f.onError = onPush, onError
	f.mu.Unlock()
	f.subscribed <- struct{}{}
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}, nil
}

func (f *fakeUpstream) push(s Snapshot) {
	f.mu.Lock()
	fn := f.onPush
	f.mu.Unlock()
	fn(s)
}

func (f *fakeUpstream) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

type recorder struct {
	mu     sync.Mutex
	pushes []Snapshot
	errs   []error
}

func (r *recorder) onPush(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, s)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.pushes))
	for i, s := range r.pushes {
		out[i] = s.Seq
	}
	return out
}

func waitSubscribed(t *testing.T, up *fakeUpstream) {
	t.Helper()
	select {
	case <-up.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not subscribe upstream")
	}
}

func TestHub_FansOutAndReplaysLatest(t *testing.T) {
	up := newFakeUpstream()
	hub := NewHub(up, zerolog.Nop(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	waitSubscribed(t, up)

	a := &recorder{}
	unsubA, err := hub.Subscribe(ctx, a.onPush, a.onError)
	require.NoError(t, err)

	up.push(Snapshot{Seq: 7, Products: []domain.Product{{ID: "r1"}}})

	b := &recorder{}
	unsubB, err := hub.Subscribe(ctx, b.onPush, b.onError)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, a.seqs())
	assert.Equal(t, []uint64{1}, b.seqs(), "late subscriber gets the latest push")
	assert.Equal(t, 2, hub.Subscribers())

	unsubA()
	unsubA()
	up.push(Snapshot{Seq: 8})
	assert.Equal(t, []uint64{1}, a.seqs())
	assert.Equal(t, []uint64{1, 2}, b.seqs())
	unsubB()

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, up.released)
}

func TestHub_ResubscribesWithIncreasingSequence(t *testing.T) {
	up := newFakeUpstream()
	hub := NewHub(up, zerolog.Nop(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()
	waitSubscribed(t, up)

	r := &recorder{}
	_, err := hub.Subscribe(ctx, r.onPush, r.onError)
	require.NoError(t, err)

	up.push(Snapshot{Seq: 1})
	up.push(Snapshot{Seq: 2})
	up.fail(errors.New("connection reset"))
	waitSubscribed(t, up)
	up.push(Snapshot{Seq: 1})

	assert.Equal(t, []uint64{1, 2, 3}, r.seqs())
	r.mu.Lock()
	assert.Len(t, r.errs, 1)
	r.mu.Unlock()
}

func TestHub_ReplaysFailureToNewSubscribers(t *testing.T) {
	up := newFakeUpstream()
	hub := NewHub(up, zerolog.Nop(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()
	waitSubscribed(t, up)

	up.fail(errors.New("permission denied"))

	r := &recorder{}
	require.Eventually(t, func() bool {
		r = &recorder{}
		unsub, err := hub.Subscribe(ctx, r.onPush, r.onError)
		if err != nil {
			return false
		}
		defer unsub()
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.errs) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, r.seqs())
}

package product

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxRetryDelay = 30 * time.Second

// Hub shares one upstream subscription between many subscribers. It renumbers pushes with its own
// sequence, so a resubscription after an upstream failure never produces a sequence number that
// subscribers have already seen. All other Repository methods go straight to the wrapped repository.
type Hub struct {
	Repository
	logger     zerolog.Logger
	retryDelay time.Duration

	mu      sync.Mutex
	subs    map[int]hubSubscriber
	nextID  int
	seq     uint64
	last    *Snapshot
	failure error
}

type hubSubscriber struct {
	onPush  func(Snapshot)
	onError func(error)
}

func NewHub(repo Repository, logger zerolog.Logger, retryDelay time.Duration) *Hub {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Hub{
		Repository: repo,
		logger:     logger,
		retryDelay: retryDelay,
		subs:       make(map[int]hubSubscriber),
	}
}

// Run holds the upstream subscription until ctx is done, resubscribing with backoff after failures.
func (h *Hub) Run(ctx context.Context) error {
	delay := h.retryDelay
	for {
		errCh := make(chan error, 1)
		pushed := make(chan struct{}, 1)
		release, err := h.Repository.Subscribe(ctx,
			func(s Snapshot) {
				h.publish(s)
				select {
				case pushed <- struct{}{}:
				default:
				}
			},
			func(err error) {
				select {
				case errCh <- err:
				default:
				}
			})
		if err == nil {
			select {
			case <-ctx.Done():
				release()
				return nil
			case err = <-errCh:
				release()
			}
			select {
			case <-pushed:
				delay = h.retryDelay
			default:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		h.fail(err)
		h.logger.Warn().Err(err).Dur("retry_in", delay).Msg("product hub: upstream subscription failed")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// Subscribe registers a subscriber and replays the latest push, or the current failure.
func (h *Hub) Subscribe(_ context.Context, onPush func(Snapshot), onError func(error)) (CancelFunc, error) {
	if onPush == nil || onError == nil {
		return nil, errors.New("product hub: both callbacks are required")
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = hubSubscriber{onPush: onPush, onError: onError}
	switch {
	case h.last != nil:
		onPush(*h.last)
	case h.failure != nil:
		onError(h.failure)
	}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}, nil
}

// Subscribers is the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish and fail call subscribers under the lock, in registration order, so that no subscriber
// observes pushes out of order.
func (h *Hub) publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	snap := Snapshot{Seq: h.seq, Products: s.Products}
	h.last = &snap
	h.failure = nil
	for _, sub := range h.ordered() {
		sub.onPush(snap)
	}
}

func (h *Hub) fail(err error) {
	if err == nil {
		err = errors.New("product subscription ended")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = nil
	h.failure = err
	for _, sub := range h.ordered() {
		sub.onError(err)
	}
}

func (h *Hub) ordered() []hubSubscriber {
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]hubSubscriber, len(ids))
	for i, id := range ids {
		out[i] = h.subs[id]
	}
	return out
}

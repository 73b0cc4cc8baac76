// Package store is the per-session read model: identity, the merged live catalog, favorites,
// search text and order history, mutated by a single event loop goroutine.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"pkstore/internal/catalog"
	"pkstore/internal/domain"
	"pkstore/internal/identity"
	"pkstore/internal/observe"
	productrepo "pkstore/internal/repository/product"
	"pkstore/internal/seed"
)

const (
	opSubscribe  = "catalog_subscribe"
	opAddProduct = "add_product"
	opSignOut    = "sign_out"
)

type productSource interface {
	Subscribe(ctx context.Context, onPush func(productrepo.Snapshot), onError func(error)) (productrepo.CancelFunc, error)
	Create(ctx context.Context, in domain.NewProduct) (*domain.Product, error)
}

// Deps are the collaborators of a Store. Products and Identity are required.
type Deps struct {
	Products productSource
	Identity identity.Provider
	Sink     observe.Sink
	Logger   zerolog.Logger
	// Seed defaults to the bundled seed catalog.
	Seed []domain.Product
	// Now and NewID default to time.Now and ULIDs.
	Now          func() time.Time
	NewID        func() string
	WriteTimeout time.Duration
	// Resume carries favorites, orders and search text over from an earlier store of the same session.
	Resume *Resume
}

// Resume is the session state that survives closing a store.
type Resume struct {
	Favorites   []string
	Orders      []domain.Order
	LastOrder   *domain.Order
	SearchQuery string
}

// Store serializes every mutation through one goroutine. It must be closed.
type Store struct {
	products     productSource
	provider     identity.Provider
	sink         observe.Sink
	logger       zerolog.Logger
	now          func() time.Time
	newID        func() string
	writeTimeout time.Duration

	events  chan func(*state)
	done    chan struct{}
	stopped chan struct{}
	st      state
	final   View

	closeOnce     sync.Once
	cancelSub     context.CancelFunc
	releaseSub    productrepo.CancelFunc
	unsubIdentity func()
}

// AddResult reports the outcome of AddProduct. Err carries the remote failure, if any,
// after the local fallback has already been applied.
type AddResult struct {
	Product   domain.Product `json:"product"`
	Persisted bool           `json:"persisted"`
	Err       error          `json:"-"`
}

// Open starts the event loop, shows the seed catalog in loading state and establishes the
// product subscription and the identity listener. Subscription failures fall back to the seed.
func Open(ctx context.Context, deps Deps) (*Store, error) {
	if deps.Products == nil || deps.Identity == nil {
		return nil, errors.New("store: products and identity are required")
	}
	s := &Store{
		products:     deps.Products,
		provider:     deps.Identity,
		sink:         deps.Sink,
		logger:       deps.Logger,
		now:          deps.Now,
		newID:        deps.NewID,
		writeTimeout: deps.WriteTimeout,
		events:       make(chan func(*state), 64),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	if s.sink == nil {
		s.sink = observe.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return ulid.Make().String() }
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 10 * time.Second
	}
	seedList := deps.Seed
	if seedList == nil {
		seedList = seed.Catalog()
	}
	s.st = state{
		seed:    catalog.Clone(seedList),
		catalog: catalog.Clone(seedList),
		loading: true,
	}
	if r := deps.Resume; r != nil {
		s.st.resume(*r)
	}
	go s.run()

	s.unsubIdentity = s.provider.OnSessionChange(s.onSession)

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelSub = cancel
	release, err := s.products.Subscribe(subCtx, s.onPush, s.onSubscriptionError)
	if err != nil {
		s.onSubscriptionError(err)
		release = nil
	}
	s.releaseSub = release
	return s, nil
}

// Close stops the event loop and releases the subscription and identity listener. It is idempotent.
// Callbacks and operations arriving afterwards are no-ops.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
		s.cancelSub()
		if s.releaseSub != nil {
			s.releaseSub()
		}
		s.unsubIdentity()
		s.logger.Debug().Msg("store closed")
	})
}

func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.events:
			fn(&s.st)
		case <-s.done:
			s.final = s.st.view()
			return
		}
	}
}

// submit runs fn on the loop and waits for it. It reports false once the store is closed.
func (s *Store) submit(fn func(*state)) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	finished := make(chan struct{})
	ev := func(st *state) {
		fn(st)
		close(finished)
	}
	select {
	case s.events <- ev:
	case <-s.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-s.stopped:
		return false
	}
}

func (s *Store) onPush(snap productrepo.Snapshot) {
	s.submit(func(st *state) {
		if snap.Seq <= st.lastSeq {
			s.logger.Debug().Uint64("seq", snap.Seq).Uint64("last_seq", st.lastSeq).Msg("store: stale catalog push discarded")
			s.sink.Observe("push_stale")
			return
		}
		st.lastSeq = snap.Seq
		st.catalog = catalog.Merge(snap.Products, st.seed)
		st.loading = false
		s.sink.Observe("push_applied")
	})
}

func (s *Store) onSubscriptionError(err error) {
	s.submit(func(st *state) {
		st.catalog = catalog.Clone(st.seed)
		st.loading = false
	})
	s.sink.Report(context.Background(), opSubscribe, err)
}

func (s *Store) onSession(sess *identity.Session) {
	next := identity.Project(sess)
	s.submit(func(st *state) {
		if st.identity != nil && next == nil {
			st.favorites = nil
		}
		st.identity = next
	})
}

// Snapshot returns a copy of the read model. After Close it returns the final state.
func (s *Store) Snapshot() View {
	var v View
	if s.submit(func(st *state) { v = st.view() }) {
		return v
	}
	<-s.stopped
	return s.final
}

// Visible is the catalog filtered by the current search text.
func (s *Store) Visible() []domain.Product {
	return s.Snapshot().Visible()
}

func (s *Store) FavoriteProducts() []domain.Product {
	return s.Snapshot().FavoriteProducts()
}

// Product resolves an id against the current catalog.
func (s *Store) Product(id string) (domain.Product, bool) {
	var (
		p  domain.Product
		ok bool
	)
	if !s.submit(func(st *state) { p, ok = catalog.Find(st.catalog, id) }) {
		<-s.stopped
		return catalog.Find(s.final.Catalog, id)
	}
	return p, ok
}

func (s *Store) SetSearchQuery(q string) {
	s.submit(func(st *state) { st.search = q })
}

// ToggleFavorite adds id to the favorite set or removes it. The id is not checked against the catalog.
func (s *Store) ToggleFavorite(id string) {
	s.submit(func(st *state) { st.toggleFavorite(id) })
}

// AddProduct writes the product to the remote repository once. On success the catalog is left to the
// next subscription push; on failure the product is prepended locally under a generated id.
// The remote write is not bound to ctx cancellation.
func (s *Store) AddProduct(ctx context.Context, in domain.NewProduct) AddResult {
	select {
	case <-s.done:
		return AddResult{Product: in.WithID(""), Err: domain.ErrClosed}
	default:
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	created, err := s.products.Create(writeCtx, in)
	cancel()
	if err == nil && created != nil {
		return AddResult{Product: *created, Persisted: true}
	}
	if err == nil {
		err = errors.New("repository returned no product")
	}

	local := in.WithID(s.newID())
	local.CreatedAt = s.now()
	s.submit(func(st *state) {
		for local.ID == "" || st.hasProduct(local.ID) {
			local.ID = s.newID()
		}
		st.catalog = append([]domain.Product{local.Clone()}, st.catalog...)
	})
	s.sink.Report(ctx, opAddProduct, err)
	return AddResult{Product: local, Err: err}
}

// PlaceOrder records a confirmed order for a snapshot of p, most recent first, and fills the
// last-order slot. It never fails and does not touch the identity.
func (s *Store) PlaceOrder(p domain.Product, customerName string) domain.Order {
	order := domain.NewOrder(s.newID(), p, customerName, s.now())
	s.submit(func(st *state) {
		st.orders = append([]domain.Order{order.Clone()}, st.orders...)
		last := order.Clone()
		st.lastOrder = &last
	})
	return order
}

// SignOut ends the provider session and clears favorites. Order history is kept.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.sink.Report(ctx, opSignOut, err)
	}
	s.submit(func(st *state) { st.favorites = nil })
}

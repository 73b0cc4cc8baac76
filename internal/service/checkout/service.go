package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"pkstore/internal/domain"
)

// Session is the per-browser state an order is placed against.
type Session interface {
	Product(id string) (domain.Product, bool)
	Identity() *domain.Identity
	SignInGuest(ctx context.Context, name string) error
	PlaceOrder(p domain.Product, customerName string) domain.Order
}

type Service struct {
	delay  time.Duration
	now    func() time.Time
	logger zerolog.Logger
	wait   func(time.Duration)
}

func New(delay time.Duration, logger zerolog.Logger) *Service {
	return &Service{delay: delay, now: time.Now, logger: logger, wait: time.Sleep}
}

type Input struct {
	ProductID    string `json:"productId" binding:"required"`
	CustomerName string `json:"name"`
	Address      string `json:"address" binding:"required"`
}

type Receipt struct {
	Order            domain.Order `json:"order"`
	EstimatedArrival time.Time    `json:"estimatedArrival"`
	GuestSignedIn    bool         `json:"guestSignedIn"`
}

// Checkout places a single-item order. The customer name falls back to the signed-in identity.
// Without an identity a guest is signed in under the customer name first. Once the product is
// resolved the order is always placed; ctx only bounds the guest sign-in write.
func (s *Service) Checkout(ctx context.Context, sess Session, in Input) (*Receipt, error) {
	if strings.TrimSpace(in.Address) == "" {
		return nil, errors.New("address required")
	}
	product, ok := sess.Product(in.ProductID)
	if !ok {
		return nil, fmt.Errorf("product %s: %w", in.ProductID, domain.ErrNotFound)
	}

	id := sess.Identity()
	name := strings.TrimSpace(in.CustomerName)
	if name == "" && id != nil {
		name = id.Name
	}
	if name == "" {
		return nil, errors.New("name required")
	}

	if s.delay > 0 {
		s.wait(s.delay)
	}

	receipt := &Receipt{}
	if id == nil {
		if err := sess.SignInGuest(context.WithoutCancel(ctx), name); err != nil {
			s.logger.Warn().Err(err).Msg("checkout: guest sign-in not persisted")
		}
		receipt.GuestSignedIn = true
	}

	receipt.Order = sess.PlaceOrder(product, name)
	receipt.EstimatedArrival = product.Delivery.EstimatedArrival(s.now())
	s.logger.Info().
		Str("order_id", receipt.Order.ID).
		Str("product_id", product.ID).
		Str("total", receipt.Order.Total.StringFixed(2)).
		Msg("checkout: order placed")
	return receipt, nil
}

package product

import (
	"context"

	"pkstore/internal/domain"
)

// Snapshot is one full replacement of the remote product list. Seq increases with every push of a subscription.
type Snapshot struct {
	Seq      uint64
	Products []domain.Product
}

// CancelFunc releases a subscription. It is safe to call more than once.
type CancelFunc func()

type Repository interface {
	FetchAll(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// Subscribe pushes the full product list, newest first, on every change until cancelled or
	// until onError is called. Neither callback is invoked after the CancelFunc returns.
	Subscribe(ctx context.Context, onPush func(Snapshot), onError func(error)) (CancelFunc, error)
	Create(ctx context.Context, in domain.NewProduct) (*domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"pkstore/internal/domain"
)

type repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// Service performs catalog changes that go straight to the remote repository. Open stores
// pick them up from the next subscription push.
type Service struct {
	repo   repository
	logger zerolog.Logger
}

func New(repo repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a remote product. For a mirrored seed id only the remote copy goes away;
// the seed entry stays in every catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("delete product %s: %w", p.ID, err)
	}
	s.logger.Info().Str("id", p.ID).Str("title", p.Title).Msg("product service: deleted")
	return nil
}

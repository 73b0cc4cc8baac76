package seed

import (
	"context"
	"errors"
	"testing"

	"pkstore/internal/domain"
)

type stubWriter struct {
	items   []domain.Product
	failOn  string
	failErr error
}

func (s *stubWriter) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == s.failOn {
		return nil, s.failErr
	}
	s.items = append(s.items, p)
	return &p, nil
}

func TestCatalog_UniqueIDsAndFreshCopies(t *testing.T) {
	first := Catalog()
	if len(first) == 0 {
		t.Fatalf("expected seed products")
	}
	seen := map[string]bool{}
	for _, p := range first {
		if seen[p.ID] {
			t.Fatalf("duplicate seed id %s", p.ID)
		}
		seen[p.ID] = true
		if !p.Delivery.Valid() {
			t.Fatalf("invalid delivery on %s", p.ID)
		}
	}

	first[0].Title = "mutated"
	if Catalog()[0].Title == "mutated" {
		t.Fatalf("expected Catalog to return a fresh copy")
	}
}

func TestApply_UpsertsEverySeed(t *testing.T) {
	w := &stubWriter{}
	n, err := Apply(context.Background(), w)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != len(Catalog()) || len(w.items) != n {
		t.Fatalf("expected %d upserts, got %d", len(Catalog()), len(w.items))
	}
}

func TestApply_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	w := &stubWriter{failOn: "3", failErr: boom}
	n, err := Apply(context.Background(), w)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 applied before failure, got %d", n)
	}
}

package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"pkstore/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,title,price,originalPrice,description,image,delivery,category,rating,sellerName
p-1,Wireless Earbuds,2499,4999,Noise cancelling,https://example.com/1.jpg,next-day,Electronics,4.6,AudioHub
,Cotton T-Shirt,499,,Plain tee,,2,Fashion,,
,,,,,,,,,
`
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo)
	imp.newID = func() string { return "generated" }

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(repo.items))
	}

	first := repo.items[0]
	if first.ID != "p-1" || first.Title != "Wireless Earbuds" || first.Delivery != domain.DeliveryNextDay {
		t.Fatalf("unexpected product data: %+v", first)
	}
	if !first.Price.Equal(decimal.NewFromInt(2499)) || first.OriginalPrice == nil || first.DiscountPercent() != 50 {
		t.Fatalf("unexpected prices: %+v", first)
	}
	if first.Rating != 4.6 || first.SellerName != "AudioHub" {
		t.Fatalf("unexpected rating/seller: %+v", first)
	}

	second := repo.items[1]
	if second.ID != "generated" || second.Delivery != domain.DeliveryTwoDay || second.OriginalPrice != nil {
		t.Fatalf("unexpected second product: %+v", second)
	}
}

func TestCSVImporter_RejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"missing column": "title,price\nMug,10\n",
		"bad price":      "title,price,delivery\nMug,free,next-day\n",
		"zero price":     "title,price,delivery\nMug,0,next-day\n",
		"bad delivery":   "title,price,delivery\nMug,10,same-day\n",
		"no title":       "title,price,delivery\n,10,next-day\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			if _, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("nothing should be written")
			}
		})
	}
}

func TestCSVImporter_StopsOnWriteError(t *testing.T) {
	repo := &stubProductRepo{err: errors.New("db down")}
	data := "id,title,price,delivery\na,Mug,10,next-day\n"
	count, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background())
	if err == nil || count != 0 {
		t.Fatalf("expected error and no imports, got count=%d err=%v", count, err)
	}
}

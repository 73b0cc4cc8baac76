package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"pkstore/internal/domain"
)

type productSeed struct {
	ID          string
	Title       string
	Price       int64
	Original    int64
	Description string
	Image       string
	Delivery    domain.Delivery
	Category    string
	Rating      float64
	Seller      string
}

var products = []productSeed{
	{
		ID:          "1",
		Title:       "Wireless Noise Cancelling Headphones",
		Price:       2499,
		Original:    4999,
		Description: "Over-ear headphones with 30 hour battery life and active noise cancellation.",
		Image:       "https://picsum.photos/id/1/400/400",
		Delivery:    domain.DeliveryNextDay,
		Category:    "Electronics",
		Rating:      4.5,
		Seller:      "SoundHub",
	},
	{
		ID:          "2",
		Title:       "Stainless Steel Water Bottle",
		Price:       499,
		Original:    799,
		Description: "Double walled bottle that keeps drinks cold for 24 hours.",
		Image:       "https://picsum.photos/id/2/400/400",
		Delivery:    domain.DeliveryNextDay,
		Category:    "Home",
		Rating:      4.7,
		Seller:      "EcoLiving",
	},
	{
		ID:          "3",
		Title:       "Cotton Crew Neck T-Shirt",
		Price:       349,
		Description: "Soft combed cotton tee, regular fit.",
		Image:       "https://picsum.photos/id/3/400/400",
		Delivery:    domain.DeliveryTwoDay,
		Category:    "Fashion",
		Rating:      4.2,
		Seller:      "Basics Co",
	},
	{
		ID:          "4",
		Title:       "Smart Fitness Band",
		Price:       1799,
		Original:    2999,
		Description: "Heart rate, sleep and step tracking with a 14 day battery.",
		Image:       "https://picsum.photos/id/4/400/400",
		Delivery:    domain.DeliveryNextDay,
		Category:    "Electronics",
		Rating:      4.1,
		Seller:      "FitGear",
	},
	{
		ID:          "5",
		Title:       "Ceramic Coffee Mug Set",
		Price:       599,
		Description: "Set of four 350ml mugs, microwave and dishwasher safe.",
		Image:       "https://picsum.photos/id/5/400/400",
		Delivery:    domain.DeliveryTwoDay,
		Category:    "Home",
		Rating:      4.6,
		Seller:      "Kitchen Story",
	},
	{
		ID:          "6",
		Title:       "Running Shoes",
		Price:       2199,
		Original:    3499,
		Description: "Lightweight mesh running shoes with cushioned sole.",
		Image:       "https://picsum.photos/id/6/400/400",
		Delivery:    domain.DeliveryTwoDay,
		Category:    "Fashion",
		Rating:      4.3,
		Seller:      "StrideWorks",
	},
	{
		ID:          "7",
		Title:       "Paperback Notebook Pack",
		Price:       199,
		Description: "Three ruled A5 notebooks, 120 pages each.",
		Image:       "https://picsum.photos/id/7/400/400",
		Delivery:    domain.DeliveryNextDay,
		Category:    "Books",
		Rating:      4.8,
		Seller:      "PaperTrail",
	},
	{
		ID:          "8",
		Title:       "USB-C Fast Charger",
		Price:       899,
		Original:    1299,
		Description: "20W charger with USB-C power delivery.",
		Image:       "https://picsum.photos/id/8/400/400",
		Delivery:    domain.DeliveryNextDay,
		Category:    "Electronics",
		Rating:      4.4,
		Seller:      "ChargeIt",
	},
}

// Catalog returns a fresh copy of the bundled seed catalog in its fixed order.
func Catalog() []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, s := range products {
		out = append(out, s.product())
	}
	return out
}

func (s productSeed) product() domain.Product {
	p := domain.Product{
		ID:          s.ID,
		Title:       s.Title,
		Price:       decimal.NewFromInt(s.Price),
		Description: s.Description,
		Image:       s.Image,
		Delivery:    s.Delivery,
		Category:    s.Category,
		Rating:      s.Rating,
		SellerName:  s.Seller,
	}
	if s.Original > 0 {
		orig := decimal.NewFromInt(s.Original)
		p.OriginalPrice = &orig
	}
	return p
}

// ProductWriter persists a product under its own identifier.
type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Apply mirrors the seed catalog into the remote repository. It is idempotent: seed ids are stable.
func Apply(ctx context.Context, w ProductWriter) (int, error) {
	applied := 0
	for _, p := range Catalog() {
		if _, err := w.Upsert(ctx, p); err != nil {
			return applied, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		applied++
	}
	return applied, nil
}

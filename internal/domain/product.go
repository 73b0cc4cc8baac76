package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog listing, either bundled with the seed catalog or owned by the remote repository.
type Product struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Description   string           `json:"description"`
	Image         string           `json:"image"`
	Delivery      Delivery         `json:"delivery"`
	Category      string           `json:"category"`
	Rating        float64          `json:"rating"`
	SellerName    string           `json:"sellerName"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NewProduct is a product submission that has not been assigned an identifier yet.
type NewProduct struct {
	Title         string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Description   string
	Image         string
	Delivery      Delivery
	Category      string
	Rating        float64
	SellerName    string
}

// WithID materializes the submission under the given identifier.
func (n NewProduct) WithID(id string) Product {
	return Product{
		ID:            id,
		Title:         n.Title,
		Price:         n.Price,
		OriginalPrice: cloneDecimal(n.OriginalPrice),
		Description:   n.Description,
		Image:         n.Image,
		Delivery:      n.Delivery,
		Category:      n.Category,
		Rating:        n.Rating,
		SellerName:    n.SellerName,
	}
}

// Clone returns a deep copy, so that an order snapshot never aliases catalog state.
func (p Product) Clone() Product {
	out := p
	out.OriginalPrice = cloneDecimal(p.OriginalPrice)
	return out
}

// DiscountPercent rounds (original-price)/original to a whole percentage, halves towards +Inf.
// It is 0 without an original price and is not clamped when the original is below the price.
func (p Product) DiscountPercent() int64 {
	if p.OriginalPrice == nil || p.OriginalPrice.IsZero() {
		return 0
	}
	orig := *p.OriginalPrice
	pct := orig.Sub(p.Price).Div(orig).Mul(decimal.NewFromInt(100))
	return pct.Add(half).Floor().IntPart()
}

var half = decimal.New(5, -1)

// Savings is the absolute difference between the original price and the price.
func (p Product) Savings() decimal.Decimal {
	if p.OriginalPrice == nil {
		return decimal.Zero
	}
	return p.OriginalPrice.Sub(p.Price)
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

package catalog

import (
	"sort"
	"strings"

	"pkstore/internal/domain"
)

// SortOption orders a product listing.
type SortOption string

const (
	SortRelevance SortOption = "relevance"
	SortPriceLow  SortOption = "price-low"
	SortPriceHigh SortOption = "price-high"
	SortFastest   SortOption = "fastest"
)

// ParseSort maps unknown values to SortRelevance.
func ParseSort(v string) SortOption {
	switch opt := SortOption(strings.ToLower(strings.TrimSpace(v))); opt {
	case SortPriceLow, SortPriceHigh, SortFastest:
		return opt
	}
	return SortRelevance
}

// Filter keeps products whose title or category contains query, ignoring case.
func Filter(products []domain.Product, query string) []domain.Product {
	q := strings.ToLower(query)
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders products in place. Relevance keeps catalog order; all sorts are stable.
func Sort(products []domain.Product, opt SortOption) {
	switch opt {
	case SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price.LessThan(products[j].Price)
		})
	case SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price.GreaterThan(products[j].Price)
		})
	case SortFastest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Delivery.Days() < products[j].Delivery.Days()
		})
	}
}

// Select returns the products whose id is in ids, in catalog order.
func Select(products []domain.Product, ids map[string]struct{}) []domain.Product {
	out := make([]domain.Product, 0, len(ids))
	for _, p := range products {
		if _, ok := ids[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

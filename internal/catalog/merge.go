// Package catalog holds the pure list operations behind the visible product list.
package catalog

import "pkstore/internal/domain"

// Merge returns every remote product in repository order followed by the seed products
// whose id is not present remotely, in seed order. On an id collision the remote product wins.
// A repeated id inside remote keeps its first occurrence.
func Merge(remote, seed []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(remote)+len(seed))
	seen := make(map[string]struct{}, len(remote)+len(seed))
	for _, p := range remote {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p.Clone())
	}
	for _, p := range seed {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p.Clone())
	}
	return out
}

// Clone deep-copies a product list.
func Clone(products []domain.Product) []domain.Product {
	if products == nil {
		return nil
	}
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}

// Find returns the product with the given id.
func Find(products []domain.Product, id string) (domain.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return domain.Product{}, false
}

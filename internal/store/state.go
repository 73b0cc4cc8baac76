package store

import (
	"pkstore/internal/catalog"
	"pkstore/internal/domain"
)

// View is a copy of the store's read model.
type View struct {
	Catalog     []domain.Product `json:"catalog"`
	Loading     bool             `json:"loading"`
	Identity    *domain.Identity `json:"identity"`
	Favorites   []string         `json:"favorites"`
	Orders      []domain.Order   `json:"orders"`
	LastOrder   *domain.Order    `json:"lastOrder"`
	SearchQuery string           `json:"searchQuery"`
}

// Visible is the catalog filtered by the search text.
func (v View) Visible() []domain.Product {
	return catalog.Filter(v.Catalog, v.SearchQuery)
}

// FavoriteProducts lists favorited catalog entries in catalog order. Orphan favorites are skipped.
func (v View) FavoriteProducts() []domain.Product {
	ids := make(map[string]struct{}, len(v.Favorites))
	for _, id := range v.Favorites {
		ids[id] = struct{}{}
	}
	return catalog.Select(v.Catalog, ids)
}

func (v View) IsFavorite(id string) bool {
	for _, f := range v.Favorites {
		if f == id {
			return true
		}
	}
	return false
}

// state is owned by the event loop goroutine.
type state struct {
	seed      []domain.Product
	catalog   []domain.Product
	loading   bool
	lastSeq   uint64
	identity  *domain.Identity
	favorites []string
	orders    []domain.Order
	lastOrder *domain.Order
	search    string
}

func (st *state) view() View {
	v := View{
		Catalog:     catalog.Clone(st.catalog),
		Loading:     st.loading,
		Favorites:   append([]string(nil), st.favorites...),
		Orders:      make([]domain.Order, len(st.orders)),
		SearchQuery: st.search,
	}
	if st.identity != nil {
		id := *st.identity
		v.Identity = &id
	}
	for i, o := range st.orders {
		v.Orders[i] = o.Clone()
	}
	if st.lastOrder != nil {
		o := st.lastOrder.Clone()
		v.LastOrder = &o
	}
	return v
}

func (st *state) resume(r Resume) {
	st.favorites = append([]string(nil), r.Favorites...)
	st.orders = make([]domain.Order, len(r.Orders))
	for i, o := range r.Orders {
		st.orders[i] = o.Clone()
	}
	if r.LastOrder != nil {
		o := r.LastOrder.Clone()
		st.lastOrder = &o
	}
	st.search = r.SearchQuery
}

// Resume extracts the state a later store of the same session continues from.
func (v View) Resume() Resume {
	return Resume{
		Favorites:   v.Favorites,
		Orders:      v.Orders,
		LastOrder:   v.LastOrder,
		SearchQuery: v.SearchQuery,
	}
}

func (st *state) toggleFavorite(id string) {
	for i, f := range st.favorites {
		if f == id {
			st.favorites = append(st.favorites[:i:i], st.favorites[i+1:]...)
			return
		}
	}
	st.favorites = append(st.favorites, id)
}

func (st *state) hasProduct(id string) bool {
	for _, p := range st.catalog {
		if p.ID == id {
			return true
		}
	}
	return false
}

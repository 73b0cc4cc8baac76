package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pkstore/internal/domain"
	productrepo "pkstore/internal/repository/product"
	"pkstore/internal/repository/token"
	"pkstore/internal/seed"
	"pkstore/internal/service/checkout"
	"pkstore/internal/session"
)

type stubProducts struct {
	productrepo.Repository
	remote    []domain.Product
	createErr error
	deleteErr error
}

func (s *stubProducts) Subscribe(_ context.Context, onPush func(productrepo.Snapshot), _ func(error)) (productrepo.CancelFunc, error) {
	if s.remote != nil {
		onPush(productrepo.Snapshot{Seq: 1, Products: s.remote})
	}
	return func() {}, nil
}

func (s *stubProducts) Create(_ context.Context, in domain.NewProduct) (*domain.Product, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	p := in.WithID("remote-new")
	return &p, nil
}

func (s *stubProducts) Delete(context.Context, string) error {
	return s.deleteErr
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestAPI(t *testing.T, products *stubProducts, checks ...ReadyCheck) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := session.NewManager(session.Options{
		Products: products,
		Tokens:   token.NewMemory(),
		TTL:      time.Hour,
		Idle:     time.Hour,
	})
	t.Cleanup(sessions.Close)

	router := buildRouter(zerolog.Nop(), Deps{
		Sessions: sessions,
		Products: products,
		Checkout: checkout.New(0, zerolog.Nop()),
		Ready:    checks,
		Gatherer: prometheus.NewRegistry(),
	})
	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set(sessionHeader, a.token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if a.token == "" {
		a.token = rec.Header().Get(sessionHeader)
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type listBody struct {
	Products []productResponse `json:"products"`
	Loading  bool              `json:"loading"`
	Total    int               `json:"total"`
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t, &stubProducts{}, ReadyCheck{Name: "db", Ping: func(context.Context) error { return errors.New("down") }})

	if rec := api.do(http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := api.do(http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec := api.do(http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rec.Code)
	}
}

func TestListProducts_IssuesSessionAndMergesRemote(t *testing.T) {
	orig := decimal.NewFromInt(200)
	remote := []domain.Product{{ID: "r1", Title: "Remote Kettle", Price: decimal.NewFromInt(100), OriginalPrice: &orig, Delivery: domain.DeliveryNextDay, Category: "Home"}}
	api := newTestAPI(t, &stubProducts{remote: remote})

	rec := api.do(http.MethodGet, "/api/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if api.token == "" {
		t.Fatalf("expected session token header")
	}
	if len(rec.Result().Cookies()) == 0 || rec.Result().Cookies()[0].Name != sessionCookie {
		t.Fatalf("expected session cookie")
	}

	body := decode[listBody](t, rec)
	if body.Loading || body.Total != len(seed.Catalog())+1 {
		t.Fatalf("unexpected listing loading=%v total=%d", body.Loading, body.Total)
	}
	first := body.Products[0]
	if first.ID != "r1" || first.DiscountPercent != 50 || first.DeliveryLabel != "Next Day" {
		t.Fatalf("unexpected first product %+v", first)
	}

	rec = api.do(http.MethodGet, "/api/products?sort=price-low&q=remote", nil)
	body = decode[listBody](t, rec)
	if body.Total != 1 || body.Products[0].ID != "r1" {
		t.Fatalf("expected filtered listing, got %+v", body)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	api := newTestAPI(t, &stubProducts{})
	if rec := api.do(http.MethodGet, "/api/products/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := api.do(http.MethodGet, "/api/products/1", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected seed product, got %d", rec.Code)
	}
}

func TestAddProduct_FallbackIsVisible(t *testing.T) {
	api := newTestAPI(t, &stubProducts{createErr: errors.New("unavailable")})

	rec := api.do(http.MethodPost, "/api/products", map[string]any{
		"title":       "Lamp",
		"price":       "250",
		"description": "Desk lamp",
		"delivery":    "two-day",
		"category":    "Home",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[struct {
		Product   productResponse `json:"product"`
		Persisted bool            `json:"persisted"`
		Error     string          `json:"error"`
	}](t, rec)
	if res.Persisted || res.Error == "" || res.Product.SellerName != anonymousSeller || res.Product.Rating != defaultRating {
		t.Fatalf("unexpected add result %+v", res)
	}

	body := decode[listBody](t, api.do(http.MethodGet, "/api/products", nil))
	if body.Products[0].ID != res.Product.ID || body.Total != len(seed.Catalog())+1 {
		t.Fatalf("expected local product first, got %+v", body.Products[0])
	}
}

func TestAddProduct_Validation(t *testing.T) {
	api := newTestAPI(t, &stubProducts{})
	cases := []map[string]any{
		{"price": "10", "description": "d", "delivery": "next-day", "category": "c"},
		{"title": "t", "price": "0", "description": "d", "delivery": "next-day", "category": "c"},
		{"title": "t", "price": "10", "description": "d", "delivery": "same-day", "category": "c"},
	}
	for i, body := range cases {
		if rec := api.do(http.MethodPost, "/api/products", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d", i, rec.Code)
		}
	}
}

func TestDeleteProduct(t *testing.T) {
	products := &stubProducts{deleteErr: domain.ErrNotFound}
	api := newTestAPI(t, products)
	if rec := api.do(http.MethodDelete, "/api/products/x", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	products.deleteErr = nil
	if rec := api.do(http.MethodDelete, "/api/products/x", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestFavoritesAndSearch(t *testing.T) {
	api := newTestAPI(t, &stubProducts{})

	rec := api.do(http.MethodPost, "/api/favorites/2", nil)
	fav := decode[struct {
		Favorite  bool     `json:"favorite"`
		Favorites []string `json:"favorites"`
	}](t, rec)
	if !fav.Favorite || len(fav.Favorites) != 1 {
		t.Fatalf("unexpected favorite state %+v", fav)
	}

	list := decode[struct {
		Favorites []string          `json:"favorites"`
		Products  []productResponse `json:"products"`
	}](t, api.do(http.MethodGet, "/api/favorites", nil))
	if len(list.Products) != 1 || list.Products[0].ID != "2" || !list.Products[0].Favorite {
		t.Fatalf("unexpected favorites %+v", list)
	}

	api.do(http.MethodPost, "/api/favorites/2", nil)
	list = decode[struct {
		Favorites []string          `json:"favorites"`
		Products  []productResponse `json:"products"`
	}](t, api.do(http.MethodGet, "/api/favorites", nil))
	if len(list.Favorites) != 0 {
		t.Fatalf("expected favorites cleared, got %v", list.Favorites)
	}

	rec = api.do(http.MethodPut, "/api/search", map[string]string{"query": "zzz-nothing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[listBody](t, api.do(http.MethodGet, "/api/products", nil))
	if body.Total != 0 {
		t.Fatalf("search text should filter the listing, got %d", body.Total)
	}
}

func TestCheckoutFlow(t *testing.T) {
	api := newTestAPI(t, &stubProducts{})

	if rec := api.do(http.MethodGet, "/api/orders/last", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any order, got %d", rec.Code)
	}

	rec := api.do(http.MethodPost, "/api/checkout", map[string]string{"productId": "2", "name": "Jane", "address": "1 Main St"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	last := decode[domain.Order](t, api.do(http.MethodGet, "/api/orders/last", nil))
	if last.CustomerName != "Jane" || last.Status != domain.OrderConfirmed || len(last.Items) != 1 {
		t.Fatalf("unexpected last order %+v", last)
	}

	sess := decode[struct {
		Identity *domain.Identity `json:"identity"`
	}](t, api.do(http.MethodGet, "/api/session", nil))
	if sess.Identity == nil || sess.Identity.Name != "Jane" {
		t.Fatalf("expected guest identity Jane, got %+v", sess.Identity)
	}

	if rec := api.do(http.MethodPost, "/api/checkout", map[string]string{"productId": "missing", "name": "Jane", "address": "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSignInAndOut(t *testing.T) {
	api := newTestAPI(t, &stubProducts{})

	if rec := api.do(http.MethodPost, "/api/session", map[string]string{"email": "not-an-email"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec := api.do(http.MethodPost, "/api/session", map[string]string{"email": "asha@example.com"})
	signedIn := decode[struct {
		Identity *domain.Identity `json:"identity"`
	}](t, rec)
	if signedIn.Identity == nil || signedIn.Identity.Name != "User" || signedIn.Identity.Email != "asha@example.com" {
		t.Fatalf("unexpected identity %+v", signedIn.Identity)
	}

	api.do(http.MethodPost, "/api/favorites/1", nil)
	api.do(http.MethodPost, "/api/checkout", map[string]string{"productId": "1", "address": "x"})

	if rec := api.do(http.MethodDelete, "/api/session", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	orders := decode[struct {
		Orders []domain.Order `json:"orders"`
	}](t, api.do(http.MethodGet, "/api/orders", nil))
	if len(orders.Orders) != 1 || orders.Orders[0].CustomerName != "User" {
		t.Fatalf("orders must survive sign-out, got %+v", orders.Orders)
	}
	favs := decode[struct {
		Favorites []string `json:"favorites"`
	}](t, api.do(http.MethodGet, "/api/favorites", nil))
	if len(favs.Favorites) != 0 {
		t.Fatalf("favorites must be cleared on sign-out")
	}
}

package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pkstore/internal/catalog"
	"pkstore/internal/domain"
	"pkstore/internal/service/checkout"
	"pkstore/internal/store"
)

const (
	anonymousSeller = "Anonymous Seller"
	defaultRating   = 5.0
	placeholderURL  = "https://picsum.photos/400/400?random="
)

type handlers struct {
	products productDeleter
	checkout *checkout.Service
	logger   zerolog.Logger
}

type productResponse struct {
	domain.Product
	DiscountPercent int64  `json:"discountPercent"`
	DeliveryDays    int    `json:"deliveryDays"`
	DeliveryLabel   string `json:"deliveryLabel"`
	Favorite        bool   `json:"favorite"`
}

func toProductResponses(products []domain.Product, v store.View) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p, v)
	}
	return out
}

func toProductResponse(p domain.Product, v store.View) productResponse {
	return productResponse{
		Product:         p,
		DiscountPercent: p.DiscountPercent(),
		DeliveryDays:    p.Delivery.Days(),
		DeliveryLabel:   p.Delivery.Label(),
		Favorite:        v.IsFavorite(p.ID),
	}
}

// listProducts serves the visible catalog. A q parameter overrides the session search text
// for this request only.
func (h *handlers) listProducts(c *gin.Context) {
	v := sessionFrom(c).Store.Snapshot()
	products := v.Visible()
	if q, ok := c.GetQuery("q"); ok {
		products = catalog.Filter(v.Catalog, q)
	}
	catalog.Sort(products, catalog.ParseSort(c.Query("sort")))
	c.JSON(http.StatusOK, gin.H{
		"products": toProductResponses(products, v),
		"loading":  v.Loading,
		"query":    v.SearchQuery,
		"total":    len(products),
	})
}

func (h *handlers) getProduct(c *gin.Context) {
	st := sessionFrom(c).Store
	p, ok := st.Product(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p, st.Snapshot()))
}

type addProductRequest struct {
	Title         string           `json:"title" binding:"required"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Description   string           `json:"description" binding:"required"`
	Image         string           `json:"image" binding:"omitempty,url"`
	Delivery      string           `json:"delivery" binding:"required"`
	Category      string           `json:"category" binding:"required"`
	Rating        *float64         `json:"rating" binding:"omitempty,gte=0,lte=5"`
	SellerName    string           `json:"sellerName"`
}

func (h *handlers) addProduct(c *gin.Context) {
	var req addProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be positive"})
		return
	}
	delivery, err := domain.ParseDelivery(req.Delivery)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := sessionFrom(c)
	v := sess.Store.Snapshot()
	in := domain.NewProduct{
		Title:         strings.TrimSpace(req.Title),
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Description:   req.Description,
		Image:         req.Image,
		Delivery:      delivery,
		Category:      req.Category,
		Rating:        defaultRating,
		SellerName:    strings.TrimSpace(req.SellerName),
	}
	if in.Image == "" {
		in.Image = placeholderURL + ulid.Make().String()
	}
	if req.Rating != nil {
		in.Rating = *req.Rating
	}
	if in.SellerName == "" {
		in.SellerName = anonymousSeller
		if v.Identity != nil {
			in.SellerName = v.Identity.Name
		}
	}

	res := sess.Store.AddProduct(c.Request.Context(), in)
	body := gin.H{
		"product":   toProductResponse(res.Product, v),
		"persisted": res.Persisted,
	}
	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session closed"})
			return
		}
		body["error"] = res.Err.Error()
	}
	c.JSON(http.StatusAccepted, body)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	if h.products == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "product repository not configured"})
		return
	}
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h *handlers) setSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := sessionFrom(c).Store
	st.SetSearchQuery(req.Query)
	v := st.Snapshot()
	visible := v.Visible()
	c.JSON(http.StatusOK, gin.H{
		"query":    v.SearchQuery,
		"products": toProductResponses(visible, v),
		"total":    len(visible),
	})
}

func (h *handlers) listFavorites(c *gin.Context) {
	v := sessionFrom(c).Store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"favorites": nonNil(v.Favorites),
		"products":  toProductResponses(v.FavoriteProducts(), v),
	})
}

func (h *handlers) toggleFavorite(c *gin.Context) {
	id := c.Param("id")
	st := sessionFrom(c).Store
	st.ToggleFavorite(id)
	v := st.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"favorite":  v.IsFavorite(id),
		"favorites": nonNil(v.Favorites),
	})
}

func (h *handlers) placeOrder(c *gin.Context) {
	var in checkout.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receipt, err := h.checkout.Checkout(c.Request.Context(), sessionFrom(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *handlers) listOrders(c *gin.Context) {
	v := sessionFrom(c).Store.Snapshot()
	orders := v.Orders
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) lastOrder(c *gin.Context) {
	v := sessionFrom(c).Store.Snapshot()
	if v.LastOrder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no order placed"})
		return
	}
	c.JSON(http.StatusOK, v.LastOrder)
}

func (h *handlers) getSession(c *gin.Context) {
	sess := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "identity": sess.Identity()})
}

type signInRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
}

func (h *handlers) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := sessionFrom(c)
	if err := sess.SignIn(c.Request.Context(), strings.TrimSpace(req.Name), req.Email); err != nil {
		h.logger.Warn().Err(err).Msg("sign-in not persisted")
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "identity": sess.Identity()})
}

func (h *handlers) signOut(c *gin.Context) {
	sess := sessionFrom(c)
	if err := sess.SignOut(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("sign-out not persisted")
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "identity": nil})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

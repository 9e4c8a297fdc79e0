package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type CartHandler struct {
	registry *storefront.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCartHandler(registry *storefront.Registry, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

type AddItemRequestDTO struct {
	ProductColorID domain.ID `json:"product_color_id"`
	Quantity       int       `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items     []domain.LineItem `json:"items"`
	Total     domain.Price      `json:"total"`
	ItemCount int               `json:"item_count"`
}

type AddItemResponse struct {
	Item domain.LineItem `json:"item"`
	Cart CartResponse    `json:"cart"`
}

func cartResponse(ws *storefront.Workspace) CartResponse {
	items := ws.Cart().Items()
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return CartResponse{
		Items:     items,
		Total:     domain.Subtotal(items),
		ItemCount: count,
	}
}

// workspace resolves the caller's workspace and writes the error response when it cannot.
func workspace(w http.ResponseWriter, r *http.Request, registry *storefront.Registry) (*storefront.Workspace, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, false
	}
	ws, err := registry.Workspace(s)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return ws, true
}

// degraded reports whether err only means the backend answered with an error status or a
// body that could not be read, in which case the cart is shown empty instead of failing the
// request.
func degraded(err error) bool {
	var statusErr *gateway.StatusError
	return errors.As(err, &statusErr) || errors.Is(err, gateway.ErrMalformedResponse)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	if err := ws.LoadCart(ctx); err != nil {
		if !degraded(err) {
			handleError(w, err)
			return
		}
		h.logger.Warn("serving empty cart after backend error", zap.String("user_id", ws.UserID()), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, cartResponse(ws))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductColorID == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant", "product_color_id is required")
		return
	}
	if req.Quantity < 1 {
		handleError(w, domain.ErrInvalidQuantity)
		return
	}

	if err := ws.EnsureLoaded(ctx); err != nil && !degraded(err) {
		handleError(w, err)
		return
	}

	item, err := ws.Cart().Add(ctx, req.ProductColorID, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, AddItemResponse{Item: item, Cart: cartResponse(ws)})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	cartID := domain.ID(chi.URLParam(r, "cart_id"))

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 1 {
		handleError(w, domain.ErrInvalidQuantity)
		return
	}

	if err := ws.EnsureLoaded(ctx); err != nil && !degraded(err) {
		handleError(w, err)
		return
	}

	if err := ws.Cart().SetQuantity(ctx, cartID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(ws))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	cartID := domain.ID(chi.URLParam(r, "cart_id"))

	if err := ws.EnsureLoaded(ctx); err != nil && !degraded(err) {
		handleError(w, err)
		return
	}

	if err := ws.Cart().Remove(ctx, cartID); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(ws))
}

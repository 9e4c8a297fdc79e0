package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type OrdersHandler struct {
	registry *storefront.Registry
	timeout  time.Duration
}

func NewOrdersHandler(registry *storefront.Registry, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		registry: registry,
		timeout:  timeout,
	}
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	orders, err := ws.Orders(ctx)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	view, err := ws.Order(ctx, domain.ID(orderID))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type CheckoutHandler struct {
	registry *storefront.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(registry *storefront.Registry, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

type PlaceOrderResponse struct {
	OrderID          domain.ID `json:"order_id"`
	ConfirmationPath string    `json:"confirmation_path"`
}

// BeginCheckout freezes the caller's cart.
func (h *CheckoutHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	snap, err := ws.BeginCheckout(ctx)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, snap)
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	snap, err := ws.Checkout(ctx, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// PlaceOrder submits the checkout form. A repeated call for an already placed checkout
// answers 409 with the existing order id.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	var form domain.CheckoutForm
	if !decodeJSON(w, r, &form) {
		return
	}

	checkoutID := chi.URLParam(r, "checkout_id")
	p, err := ws.Submit(ctx, checkoutID, form)
	if errors.Is(err, order.ErrAlreadyPlaced) {
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "already_placed",
			Details: p.OrderID.String(),
		})
		return
	}
	if err != nil {
		h.logger.Info("order placement failed", zap.String("checkout_id", checkoutID), zap.Error(err))
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponse{
		OrderID:          p.OrderID,
		ConfirmationPath: p.ConfirmationPath,
	})
}

func (h *CheckoutHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := workspace(w, r, h.registry)
	if !ok {
		return
	}

	view, err := ws.Confirmation(ctx, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

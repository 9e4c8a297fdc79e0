package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/order"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError converts storefront errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		incomplete *domain.IncompleteFormError
		rejected   *domain.RemoteRejectedError
		statusErr  *gateway.StatusError
	)

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrInvalidVariant):
		respondError(w, http.StatusBadRequest, "invalid_variant", err.Error())
	case errors.As(err, &incomplete):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   domain.ErrIncompleteForm.Error(),
			Code:    "incomplete_form",
			Details: strings.Join(incomplete.Fields, ","),
		})
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.As(err, &rejected):
		respondError(w, http.StatusUnprocessableEntity, "order_rejected", rejected.Reason)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, checkout.ErrSnapshotNotFound):
		respondError(w, http.StatusNotFound, "checkout_not_found", err.Error())
	case errors.Is(err, order.ErrNotPlaced):
		respondError(w, http.StatusNotFound, "order_not_placed", err.Error())
	case errors.Is(err, order.ErrSubmitInProgress):
		respondError(w, http.StatusConflict, "submit_in_progress", err.Error())
	case errors.Is(err, cart.ErrItemPending):
		respondError(w, http.StatusConflict, "item_pending", err.Error())
	case errors.Is(err, cart.ErrStoreClosed):
		respondError(w, http.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "backend did not answer in time")
	case errors.Is(err, domain.ErrNetwork):
		respondError(w, http.StatusBadGateway, "backend_unavailable", domain.ErrNetwork.Error())
	case errors.Is(err, gateway.ErrMalformedResponse):
		respondError(w, http.StatusBadGateway, "backend_error", gateway.ErrMalformedResponse.Error())
	case errors.As(err, &statusErr):
		respondError(w, http.StatusBadGateway, "backend_error", statusErr.Message)
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

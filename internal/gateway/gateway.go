package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// Gateway is the only component that talks to the backend cart and order endpoints.
// It does not cache.
type Gateway struct {
	client *Client
	sess   *session.Context
}

func (g *Gateway) token() (string, error) {
	s, ok := g.sess.Current()
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return s.Token, nil
}

// FetchCart returns the user's line items. On a backend error status or an unreadable body it
// returns an empty list together with the error so a failed fetch shows an empty cart.
func (g *Gateway) FetchCart(ctx context.Context, userID string) ([]domain.LineItem, error) {
	token, err := g.token()
	if err != nil {
		return nil, err
	}

	v, err, _ := g.client.sfg.Do("cart:"+userID, func() (interface{}, error) {
		data, _, err := g.client.do(ctx, token, request{
			method: http.MethodGet,
			path:   "/cart/get/" + url.PathEscape(userID),
		})
		if err != nil {
			return nil, err
		}
		return decodeCartList(data, g.client.logger)
	})

	var se *StatusError
	if errors.As(err, &se) {
		g.client.logger.Warn("fetch cart failed",
			zap.String("user_id", userID),
			zap.Int("status", se.Status),
			zap.String("reason", se.Message))
		return []domain.LineItem{}, fmt.Errorf("fetch cart: %w", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		g.client.logger.Warn("unreadable cart response", zap.String("user_id", userID), zap.Error(err))
		return []domain.LineItem{}, fmt.Errorf("fetch cart: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	shared := v.([]domain.LineItem)
	items := make([]domain.LineItem, len(shared))
	copy(items, shared)
	return items, nil
}

type addItemRequest struct {
	UserID         string    `json:"userId"`
	ProductColorID domain.ID `json:"productColorId"`
	Quantity       int       `json:"quantity"`
}

func (g *Gateway) AddItem(ctx context.Context, userID string, variantID domain.ID, quantity int) (domain.LineItem, error) {
	token, err := g.token()
	if err != nil {
		return domain.LineItem{}, err
	}

	data, _, err := g.client.do(ctx, token, request{
		method: http.MethodPost,
		path:   "/cart/add",
		body:   addItemRequest{UserID: userID, ProductColorID: variantID, Quantity: quantity},
	})
	if isStatus(err, http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity) {
		return domain.LineItem{}, fmt.Errorf("add item %s: %w: %w", variantID, domain.ErrInvalidVariant, err)
	}
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("add item %s: %w", variantID, err)
	}

	item, err := decodeCartItem(data, g.client.logger)
	if err != nil {
		return domain.LineItem{}, err
	}
	if item.VariantID == "" {
		item.VariantID = variantID
	}
	if item.Quantity == 0 {
		item.Quantity = quantity
	}
	return item, nil
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity expects quantity >= 1; the caller validates it. ErrNotFound means the
// line item is already gone on the backend.
func (g *Gateway) UpdateQuantity(ctx context.Context, cartID domain.ID, quantity int) (domain.LineItem, error) {
	token, err := g.token()
	if err != nil {
		return domain.LineItem{}, err
	}

	data, _, err := g.client.do(ctx, token, request{
		method: http.MethodPut,
		path:   "/cart/update/" + url.PathEscape(cartID.String()),
		body:   updateQuantityRequest{Quantity: quantity},
	})
	if isStatus(err, http.StatusNotFound) {
		return domain.LineItem{}, fmt.Errorf("update %s: %w", cartID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("update %s: %w", cartID, err)
	}

	item, err := decodeCartItem(data, g.client.logger)
	if err != nil {
		return domain.LineItem{}, err
	}
	if item.CartID == "" {
		item.CartID = cartID
	}
	if item.Quantity == 0 {
		item.Quantity = quantity
	}
	return item, nil
}

// RemoveItem treats an item that is already gone as removed.
func (g *Gateway) RemoveItem(ctx context.Context, cartID domain.ID) error {
	token, err := g.token()
	if err != nil {
		return err
	}

	_, _, err = g.client.do(ctx, token, request{
		method: http.MethodDelete,
		path:   "/cart/remove/" + url.PathEscape(cartID.String()),
	})
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", cartID, err)
	}
	return nil
}

// CreateOrder posts the submission once. A refusal is returned as *domain.RemoteRejectedError
// with the backend's message.
func (g *Gateway) CreateOrder(ctx context.Context, sub domain.OrderSubmission, idempotencyKey string) (domain.ID, error) {
	token, err := g.token()
	if err != nil {
		return "", err
	}

	data, _, err := g.client.do(ctx, token, request{
		method:  http.MethodPost,
		path:    "/orders/create",
		body:    sub,
		headers: map[string]string{"Idempotency-Key": idempotencyKey},
	})
	var se *StatusError
	if errors.As(err, &se) {
		return "", &domain.RemoteRejectedError{Status: se.Status, Reason: se.Message}
	}
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}

	var resp struct {
		OrderID domain.ID `json:"orderId"`
		ID      domain.ID `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode create order response: %w", err)
	}
	if resp.OrderID == "" {
		resp.OrderID = resp.ID
	}
	if resp.OrderID == "" {
		return "", &domain.RemoteRejectedError{Status: http.StatusBadGateway, Reason: "backend did not return an order id"}
	}
	return resp.OrderID, nil
}

func (g *Gateway) GetOrder(ctx context.Context, orderID domain.ID) (domain.Order, error) {
	token, err := g.token()
	if err != nil {
		return domain.Order{}, err
	}

	data, _, err := g.client.do(ctx, token, request{
		method: http.MethodGet,
		path:   "/orders/getbyid/" + url.PathEscape(orderID.String()),
	})
	if isStatus(err, http.StatusNotFound) {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return decodeOrder(data)
}

// ListOrders returns the user's order history.
func (g *Gateway) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	token, err := g.token()
	if err != nil {
		return nil, err
	}

	data, _, err := g.client.do(ctx, token, request{
		method: http.MethodGet,
		path:   "/orders/userorder/" + url.PathEscape(userID),
	})
	if isStatus(err, http.StatusNotFound) {
		return []domain.Order{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return decodeOrderList(data)
}

package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// ErrMalformedResponse is a 2xx backend answer whose body could not be read.
var ErrMalformedResponse = errors.New("malformed backend response")

// The backend is inconsistent about wrapping: lists arrive bare or under one of these keys,
// single items bare or under one of the object keys.
var (
	listKeys   = []string{"data", "cartItems", "items", "cart"}
	objectKeys = []string{"cartItem", "item", "data"}
	orderKeys  = []string{"order", "data"}
)

type cartItemDTO struct {
	CartID         domain.ID    `json:"cartId"`
	ID             domain.ID    `json:"id"`
	ProductColorID domain.ID    `json:"productColorId"`
	Quantity       int          `json:"quantity"`
	Price          lenientPrice `json:"price"`
	Name           string       `json:"name"`
	Image          string       `json:"image"`
	Variant        string       `json:"variant"`
	Color          string       `json:"color"`
	Size           string       `json:"size"`
}

// lenientPrice never fails to decode. A value that is not a price becomes zero and keeps the
// raw text for the warning.
type lenientPrice struct {
	domain.Price
	raw string
}

func (p *lenientPrice) UnmarshalJSON(data []byte) error {
	if err := p.Price.UnmarshalJSON(data); err != nil {
		p.Price = domain.Price{}
		p.raw = string(data)
	}
	return nil
}

func (d cartItemDTO) warnPrice(logger *zap.Logger) {
	if d.Price.raw == "" {
		return
	}
	id := d.CartID
	if id == "" {
		id = d.ID
	}
	logger.Warn("unreadable cart item price, counting it as zero",
		zap.String("cart_id", id.String()),
		zap.String("price", d.Price.raw))
}

func (d cartItemDTO) toDomain() domain.LineItem {
	item := domain.LineItem{
		CartID:       d.CartID,
		VariantID:    d.ProductColorID,
		Quantity:     d.Quantity,
		UnitPrice:    d.Price.Price,
		DisplayName:  d.Name,
		ImageRef:     d.Image,
		VariantLabel: d.Variant,
		Color:        d.Color,
		Size:         d.Size,
		State:        domain.LineConfirmed,
	}
	if item.CartID == "" {
		item.CartID = d.ID
	}
	if item.VariantID == "" {
		item.VariantID = d.ID
	}
	if item.VariantLabel == "" {
		item.VariantLabel = d.Color
	}
	return item
}

func isArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// unwrapList returns the JSON array in data: data itself or the first wrapped array.
// ok is false when data holds no list at all.
func unwrapList(data []byte, keys []string) (json.RawMessage, bool) {
	if isArray(data) {
		return data, true
	}
	if !isObject(data) {
		return nil, false
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, false
	}
	for _, k := range keys {
		if raw, ok := wrapper[k]; ok && isArray(raw) {
			return raw, true
		}
	}
	return nil, false
}

func unwrapObject(data []byte, keys []string) json.RawMessage {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return data
	}
	for _, k := range keys {
		if raw, ok := wrapper[k]; ok && isObject(raw) {
			return raw
		}
	}
	return data
}

func decodeCartList(data []byte, logger *zap.Logger) ([]domain.LineItem, error) {
	raw, ok := unwrapList(data, listKeys)
	if !ok {
		return []domain.LineItem{}, nil
	}
	var dtos []cartItemDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("%w: decode cart items: %w", ErrMalformedResponse, err)
	}
	items := make([]domain.LineItem, 0, len(dtos))
	for _, d := range dtos {
		d.warnPrice(logger)
		items = append(items, d.toDomain())
	}
	return items, nil
}

func decodeCartItem(data []byte, logger *zap.Logger) (domain.LineItem, error) {
	if !isObject(data) {
		return domain.LineItem{}, fmt.Errorf("%w: decode cart item: unexpected body %q", ErrMalformedResponse, truncate(data))
	}
	var dto cartItemDTO
	if err := json.Unmarshal(unwrapObject(data, objectKeys), &dto); err != nil {
		return domain.LineItem{}, fmt.Errorf("%w: decode cart item: %w", ErrMalformedResponse, err)
	}
	dto.warnPrice(logger)
	return dto.toDomain(), nil
}

type orderItemDTO struct {
	ID            domain.ID    `json:"id"`
	Quantity      int          `json:"quantity"`
	Price         domain.Price `json:"price"`
	ProductColors struct {
		ProductID domain.ID `json:"productId"`
		Name      string    `json:"name"`
		Product   struct {
			Name   string `json:"name"`
			Images []struct {
				ImageURL string `json:"imageUrl"`
			} `json:"Images"`
		} `json:"Product"`
		Color struct {
			Name string `json:"name"`
		} `json:"Color"`
	} `json:"ProductColors"`
}

func (d orderItemDTO) toDomain() domain.OrderItem {
	item := domain.OrderItem{
		ID:        d.ID,
		ProductID: d.ProductColors.ProductID,
		Name:      d.ProductColors.Product.Name,
		Color:     d.ProductColors.Color.Name,
		Quantity:  d.Quantity,
		Price:     d.Price,
	}
	if item.Name == "" {
		item.Name = d.ProductColors.Name
	}
	if item.Name == "" {
		item.Name = "Unknown Item"
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if len(d.ProductColors.Product.Images) > 0 {
		item.ImageRef = d.ProductColors.Product.Images[0].ImageURL
	}
	return item
}

type orderDTO struct {
	ID            domain.ID            `json:"id"`
	OrderID       domain.ID            `json:"orderId"`
	UserID        domain.ID            `json:"userId"`
	Status        domain.OrderStatus   `json:"status"`
	Subtotal      domain.Price         `json:"subtotal"`
	Tax           domain.Price         `json:"tax"`
	Total         domain.Price         `json:"total"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	StreetAddress string               `json:"streetAddress"`
	Apartment     string               `json:"apartment"`
	City          string               `json:"city"`
	State         string               `json:"state"`
	ZipCode       string               `json:"zipCode"`
	Country       string               `json:"country"`
	CreatedAt     time.Time            `json:"createdAt"`
	OrderItems    []orderItemDTO       `json:"OrderItems"`
}

func (d orderDTO) toDomain() domain.Order {
	o := domain.Order{
		ID:            d.ID,
		UserID:        d.UserID,
		Status:        d.Status,
		Subtotal:      d.Subtotal,
		Tax:           d.Tax,
		Total:         d.Total,
		PaymentMethod: d.PaymentMethod,
		StreetAddress: d.StreetAddress,
		Apartment:     d.Apartment,
		City:          d.City,
		State:         d.State,
		ZipCode:       d.ZipCode,
		Country:       d.Country,
		CreatedAt:     d.CreatedAt,
		Items:         make([]domain.OrderItem, 0, len(d.OrderItems)),
	}
	if o.ID == "" {
		o.ID = d.OrderID
	}
	for _, it := range d.OrderItems {
		o.Items = append(o.Items, it.toDomain())
	}
	return o
}

func decodeOrder(data []byte) (domain.Order, error) {
	var dto orderDTO
	if err := json.Unmarshal(unwrapObject(data, orderKeys), &dto); err != nil {
		return domain.Order{}, fmt.Errorf("%w: decode order: %w", ErrMalformedResponse, err)
	}
	return dto.toDomain(), nil
}

func decodeOrderList(data []byte) ([]domain.Order, error) {
	raw, ok := unwrapList(data, []string{"orders", "data"})
	if !ok {
		return []domain.Order{}, nil
	}
	var dtos []orderDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("%w: decode orders: %w", ErrMalformedResponse, err)
	}
	orders := make([]domain.Order, 0, len(dtos))
	for _, d := range dtos {
		orders = append(orders, d.toDomain())
	}
	return orders, nil
}

func truncate(data []byte) string {
	if len(data) > 64 {
		return string(data[:64]) + "..."
	}
	return string(data)
}

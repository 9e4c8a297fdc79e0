package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the flat tax applied to every order subtotal.
var TaxRate = decimal.NewFromFloat(0.05)

const (
	Currency       = "INR"
	DefaultCountry = "india"
)

type PaymentMethod string

const (
	PaymentOnline         PaymentMethod = "online"
	PaymentCashOnDelivery PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCashOnDelivery
}

// CartSnapshot is a point-in-time copy of the cart taken when checkout begins.
// Amounts are computed once at capture and never recomputed from the live cart.
type CartSnapshot struct {
	CheckoutID string     `json:"checkoutId"`
	UserID     string     `json:"userId"`
	Items      []LineItem `json:"items"`
	Subtotal   Price      `json:"subtotal"`
	Tax        Price      `json:"tax"`
	Total      Price      `json:"total"`
	Currency   string     `json:"currency"`
	CapturedAt time.Time  `json:"capturedAt"`
}

// CheckoutForm holds the shipping and payment fields collected at checkout.
type CheckoutForm struct {
	FirstName     string        `json:"firstName" validate:"required"`
	LastName      string        `json:"lastName" validate:"required"`
	Email         string        `json:"email" validate:"required"`
	PhoneNumber   string        `json:"phoneNumber" validate:"required"`
	WaistSize     string        `json:"waistSize,omitempty"`
	ThighsSize    string        `json:"thighsSize,omitempty"`
	FullLength    string        `json:"fullLength,omitempty"`
	StreetAddress string        `json:"streetAddress" validate:"required"`
	Apartment     string        `json:"apartment,omitempty"`
	City          string        `json:"city" validate:"required"`
	State         string        `json:"state" validate:"required"`
	ZipCode       string        `json:"zipCode" validate:"required"`
	Country       string        `json:"country" validate:"required"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=online cod"`
}

type SubmissionItem struct {
	CartID    ID     `json:"cartId"`
	VariantID ID     `json:"productColorId"`
	Quantity  int    `json:"quantity"`
	Price     Price  `json:"price"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// OrderSubmission is the body of an order creation request. It is never edited after it
// has been sent.
type OrderSubmission struct {
	UserID        string           `json:"userId"`
	CartItems     []SubmissionItem `json:"cartItems"`
	FirstName     string           `json:"firstName"`
	LastName      string           `json:"lastName"`
	Email         string           `json:"email"`
	PhoneNumber   string           `json:"phoneNumber"`
	WaistSize     string           `json:"waistSize"`
	ThighsSize    string           `json:"thighsSize"`
	FullLength    string           `json:"fullLength"`
	StreetAddress string           `json:"streetAddress"`
	Apartment     string           `json:"apartment"`
	City          string           `json:"city"`
	State         string           `json:"state"`
	ZipCode       string           `json:"zipCode"`
	Country       string           `json:"country"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
	Subtotal      Price            `json:"subtotal"`
	Tax           Price            `json:"tax"`
	Total         Price            `json:"total"`
}

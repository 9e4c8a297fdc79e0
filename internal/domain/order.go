package domain

import "time"

// OrderStatus is the backend's numeric order status.
type OrderStatus int

const (
	OrderPending OrderStatus = iota + 1
	OrderProcessing
	OrderShipped
	OrderDelivered
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "Pending"
	case OrderProcessing:
		return "Processing"
	case OrderShipped:
		return "Shipped"
	case OrderDelivered:
		return "Delivered"
	case OrderCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type TrackingStep struct {
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
}

// TrackingSteps lists the delivery progress from Pending to Delivered. A cancelled order has
// no completed step.
func TrackingSteps(status OrderStatus) []TrackingStep {
	steps := make([]TrackingStep, 0, 4)
	for s := OrderPending; s <= OrderDelivered; s++ {
		steps = append(steps, TrackingStep{
			Status:    s.String(),
			Completed: status != OrderCancelled && s <= status,
		})
	}
	return steps
}

type OrderItem struct {
	ID        ID     `json:"id"`
	ProductID ID     `json:"productId,omitempty"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	ImageRef  string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     Price  `json:"price"`
}

type Order struct {
	ID            ID            `json:"id"`
	UserID        ID            `json:"userId,omitempty"`
	Status        OrderStatus   `json:"status"`
	Items         []OrderItem   `json:"items"`
	Subtotal      Price         `json:"subtotal"`
	Tax           Price         `json:"tax"`
	Total         Price         `json:"total"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	StreetAddress string        `json:"streetAddress,omitempty"`
	Apartment     string        `json:"apartment,omitempty"`
	City          string        `json:"city,omitempty"`
	State         string        `json:"state,omitempty"`
	ZipCode       string        `json:"zipCode,omitempty"`
	Country       string        `json:"country,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

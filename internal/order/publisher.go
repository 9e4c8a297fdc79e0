package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const EventTypeOrderPlaced = "order.placed"

// OrderPlaced is emitted once per successful placement.
type OrderPlaced struct {
	OrderID    domain.ID               `json:"order_id"`
	CheckoutID string                  `json:"checkout_id"`
	UserID     string                  `json:"user_id"`
	Items      []domain.SubmissionItem `json:"items"`
	Subtotal   domain.Price            `json:"subtotal"`
	Tax        domain.Price            `json:"tax"`
	Total      domain.Price            `json:"total_amount"`
	Currency   string                  `json:"currency"`
	Payment    domain.PaymentMethod    `json:"payment_method"`
	PlacedAt   time.Time               `json:"placed_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event OrderPlaced) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderPlaced) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events keyed by order id.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderPlaced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderID), // order id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

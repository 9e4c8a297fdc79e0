package order

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MockGateway implements Gateway for testing
type MockGateway struct {
	mu sync.Mutex

	OrderID  domain.ID
	Err      error
	Order    domain.Order
	GetErr   error
	Block    chan struct{} // when set, CreateOrder waits on it
	Started  chan struct{} // signalled when CreateOrder is entered
	Calls    int
	Keys     []string
	Received []domain.OrderSubmission
}

func (m *MockGateway) CreateOrder(ctx context.Context, sub domain.OrderSubmission, key string) (domain.ID, error) {
	m.mu.Lock()
	m.Calls++
	m.Keys = append(m.Keys, key)
	m.Received = append(m.Received, sub)
	block, started := m.Block, m.Started
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OrderID, m.Err
}

func (m *MockGateway) GetOrder(_ context.Context, _ domain.ID) (domain.Order, error) {
	return m.Order, m.GetErr
}

func (m *MockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	Events []OrderPlaced
	Err    error
}

func (m *MockPublisher) Publish(_ context.Context, event OrderPlaced) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

// MockWriter implements messageWriter for testing
type MockWriter struct {
	Messages []kafka.Message
	Err      error
	Closed   bool
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.Messages = append(m.Messages, msgs...)
	return m.Err
}

func (m *MockWriter) Close() error {
	m.Closed = true
	return nil
}

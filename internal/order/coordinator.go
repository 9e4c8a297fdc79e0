package order

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

var (
	ErrSubmitInProgress = errors.New("order submission already in progress")
	ErrAlreadyPlaced    = errors.New("order already placed for this checkout")
	ErrNotPlaced        = errors.New("order has not been placed")
)

const publishTimeout = 5 * time.Second

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSubmitting:
		return "SUBMITTING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Gateway is the part of the backend the coordinator talks to.
type Gateway interface {
	CreateOrder(ctx context.Context, sub domain.OrderSubmission, idempotencyKey string) (domain.ID, error)
	GetOrder(ctx context.Context, orderID domain.ID) (domain.Order, error)
}

// Assembler turns a snapshot and the filled-in form into the order request body.
type Assembler interface {
	Assemble(snap domain.CartSnapshot, form domain.CheckoutForm, userID string) (domain.OrderSubmission, error)
}

// Placement is the outcome of a successful submission.
type Placement struct {
	OrderID          domain.ID `json:"order_id"`
	ConfirmationPath string    `json:"confirmation_path"`
}

// Coordinator submits at most one order per checkout attempt.
type Coordinator struct {
	gw        Gateway
	assembler Assembler
	sess      *session.Context
	publisher Publisher
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	placement Placement
	lastErr   error
}

func NewCoordinator(gw Gateway, assembler Assembler, sess *session.Context, publisher Publisher, logger *zap.Logger) *Coordinator {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Coordinator{
		gw:        gw,
		assembler: assembler,
		sess:      sess,
		publisher: publisher,
		logger:    logger,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the error of the most recent failed attempt, nil otherwise.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit validates the form, builds the submission from the snapshot and sends it once.
// Calls made while a submission is in flight return ErrSubmitInProgress without touching the
// network. Failures are never retried here.
func (c *Coordinator) Submit(ctx context.Context, snap domain.CartSnapshot, form domain.CheckoutForm) (Placement, error) {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return Placement{}, ErrSubmitInProgress
	case StateSucceeded:
		p := c.placement
		c.mu.Unlock()
		return p, ErrAlreadyPlaced
	}

	sess, ok := c.sess.Current()
	if !ok {
		c.lastErr = domain.ErrUnauthenticated
		c.mu.Unlock()
		return Placement{}, domain.ErrUnauthenticated
	}

	sub, err := c.assembler.Assemble(snap, form, sess.UserID)
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return Placement{}, err
	}

	c.state = StateSubmitting
	c.lastErr = nil
	c.mu.Unlock()

	key := uuid.NewString()
	orderID, err := c.gw.CreateOrder(ctx, sub, key)

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Warn("order submission failed",
			zap.String("checkout_id", snap.CheckoutID),
			zap.String("idempotency_key", key),
			zap.Error(err))
		return Placement{}, err
	}
	c.state = StateSucceeded
	c.placement = Placement{
		OrderID:          orderID,
		ConfirmationPath: ConfirmationPath(orderID),
	}
	p := c.placement
	c.mu.Unlock()

	c.logger.Info("order placed",
		zap.String("checkout_id", snap.CheckoutID),
		zap.String("order_id", orderID.String()))

	c.publish(ctx, OrderPlaced{
		OrderID:    orderID,
		CheckoutID: snap.CheckoutID,
		UserID:     sub.UserID,
		Items:      sub.CartItems,
		Subtotal:   sub.Subtotal,
		Tax:        sub.Tax,
		Total:      sub.Total,
		Currency:   snap.Currency,
		Payment:    sub.PaymentMethod,
		PlacedAt:   time.Now().UTC(),
	})

	return p, nil
}

func (c *Coordinator) publish(ctx context.Context, event OrderPlaced) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish order placed event",
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err))
	}
}

// Confirmation fetches the order that was placed by this coordinator.
func (c *Coordinator) Confirmation(ctx context.Context) (domain.Order, error) {
	c.mu.Lock()
	state, p := c.state, c.placement
	c.mu.Unlock()
	if state != StateSucceeded {
		return domain.Order{}, ErrNotPlaced
	}
	o, err := c.gw.GetOrder(ctx, p.OrderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order %s: %w", p.OrderID, err)
	}
	return o, nil
}

func ConfirmationPath(orderID domain.ID) string {
	return "/order-confirmation?orderId=" + url.QueryEscape(orderID.String())
}

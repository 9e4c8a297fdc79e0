package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// Gateway is everything a workspace needs from the backend.
type Gateway interface {
	cart.Gateway
	order.Gateway
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}

// GatewayFactory binds a backend gateway to one session.
type GatewayFactory func(sess *session.Context) Gateway

// OrderView is an order with its delivery progress.
type OrderView struct {
	domain.Order
	StatusLabel string                `json:"statusLabel"`
	Tracking    []domain.TrackingStep `json:"tracking"`
}

func newOrderView(o domain.Order) OrderView {
	return OrderView{
		Order:       o,
		StatusLabel: o.Status.String(),
		Tracking:    domain.TrackingSteps(o.Status),
	}
}

// Workspace is one signed-in user's cart and checkouts.
type Workspace struct {
	sess      *session.Context
	gw        Gateway
	store     *cart.Store
	builder   *checkout.Builder
	snapshots checkout.SnapshotStore
	publisher order.Publisher
	logger    *zap.Logger

	mu           sync.Mutex
	loaded       bool
	coordinators map[string]*order.Coordinator
}

func (w *Workspace) UserID() string {
	s, _ := w.sess.Current()
	return s.UserID
}

func (w *Workspace) Cart() *cart.Store {
	return w.store
}

// LoadCart refreshes the cart from the backend.
func (w *Workspace) LoadCart(ctx context.Context) error {
	err := w.store.Load(ctx)
	if !errors.Is(err, domain.ErrUnauthenticated) && !errors.Is(err, cart.ErrStoreClosed) {
		w.mu.Lock()
		w.loaded = true
		w.mu.Unlock()
	}
	return err
}

// EnsureLoaded loads the cart once per workspace.
func (w *Workspace) EnsureLoaded(ctx context.Context) error {
	w.mu.Lock()
	loaded := w.loaded
	w.mu.Unlock()
	if loaded {
		return nil
	}
	return w.LoadCart(ctx)
}

// BeginCheckout freezes the current cart and stores the snapshot under a new checkout id.
// The cart is reloaded first so items the backend already ordered are never frozen again.
func (w *Workspace) BeginCheckout(ctx context.Context) (domain.CartSnapshot, error) {
	if err := w.LoadCart(ctx); err != nil {
		return domain.CartSnapshot{}, err
	}
	snap, err := w.builder.BuildSnapshot(w.store)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	snap.UserID = w.UserID()
	if err := w.snapshots.Save(ctx, snap); err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("save checkout %s: %w", snap.CheckoutID, err)
	}
	w.logger.Info("checkout started",
		zap.String("checkout_id", snap.CheckoutID),
		zap.String("user_id", snap.UserID),
		zap.Int("items", len(snap.Items)),
		zap.String("total", snap.Total.String()))
	return snap, nil
}

// Checkout returns a stored snapshot owned by this user.
func (w *Workspace) Checkout(ctx context.Context, checkoutID string) (domain.CartSnapshot, error) {
	snap, err := w.snapshots.Get(ctx, checkoutID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if snap.UserID != w.UserID() {
		return domain.CartSnapshot{}, checkout.ErrSnapshotNotFound
	}
	return snap, nil
}

// Submit places the order for checkoutID. The checkout is claimed in the snapshot store for
// the duration of the call, so a second submission for the same checkout is refused even
// from another workspace of the same user.
func (w *Workspace) Submit(ctx context.Context, checkoutID string, form domain.CheckoutForm) (order.Placement, error) {
	if coord, ok := w.lookup(checkoutID); ok && coord.State() == order.StateSucceeded {
		return coord.Submit(ctx, domain.CartSnapshot{}, form)
	}

	claimed, err := w.snapshots.Claim(ctx, checkoutID)
	if err != nil {
		return order.Placement{}, fmt.Errorf("claim checkout %s: %w", checkoutID, err)
	}
	if !claimed {
		return order.Placement{}, order.ErrSubmitInProgress
	}
	defer func() {
		if err := w.snapshots.Release(context.WithoutCancel(ctx), checkoutID); err != nil {
			w.logger.Warn("failed to release checkout claim", zap.String("checkout_id", checkoutID), zap.Error(err))
		}
	}()

	snap, err := w.Checkout(ctx, checkoutID)
	if err != nil {
		w.forget(checkoutID)
		return order.Placement{}, err
	}

	p, err := w.coordinator(checkoutID).Submit(ctx, snap, form)
	if err != nil {
		return p, err
	}

	// the backend emptied the cart
	w.mu.Lock()
	w.loaded = false
	w.mu.Unlock()

	if err := w.snapshots.Delete(ctx, checkoutID); err != nil {
		w.logger.Warn("failed to delete checkout snapshot", zap.String("checkout_id", checkoutID), zap.Error(err))
	}
	return p, nil
}

// Confirmation fetches the order placed for checkoutID.
func (w *Workspace) Confirmation(ctx context.Context, checkoutID string) (OrderView, error) {
	coord, ok := w.lookup(checkoutID)
	if !ok {
		return OrderView{}, order.ErrNotPlaced
	}
	o, err := coord.Confirmation(ctx)
	if err != nil {
		return OrderView{}, err
	}
	return newOrderView(o), nil
}

func (w *Workspace) lookup(checkoutID string) (*order.Coordinator, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.coordinators[checkoutID]
	return c, ok
}

func (w *Workspace) coordinator(checkoutID string) *order.Coordinator {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.coordinators[checkoutID]; ok {
		return c
	}
	c := order.NewCoordinator(w.gw, w.builder, w.sess, w.publisher,
		w.logger.With(zap.String("checkout_id", checkoutID)))
	w.coordinators[checkoutID] = c
	return c
}

// forget drops the coordinator of a checkout whose snapshot is gone. Placed orders keep
// theirs for Confirmation.
func (w *Workspace) forget(checkoutID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.coordinators[checkoutID]; ok && c.State() != order.StateSucceeded && c.State() != order.StateSubmitting {
		delete(w.coordinators, checkoutID)
	}
}

// Orders lists the user's orders, newest first as the backend returns them.
func (w *Workspace) Orders(ctx context.Context) ([]OrderView, error) {
	orders, err := w.gw.ListOrders(ctx, w.UserID())
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views, nil
}

func (w *Workspace) Order(ctx context.Context, orderID domain.ID) (OrderView, error) {
	o, err := w.gw.GetOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return newOrderView(o), nil
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

var (
	ErrStoreClosed = errors.New("cart store is closed")
	ErrItemPending = errors.New("item is still being added")
)

// Gateway is the part of the remote cart gateway the store depends on.
type Gateway interface {
	FetchCart(ctx context.Context, userID string) ([]domain.LineItem, error)
	AddItem(ctx context.Context, userID string, variantID domain.ID, quantity int) (domain.LineItem, error)
	UpdateQuantity(ctx context.Context, cartID domain.ID, quantity int) (domain.LineItem, error)
	RemoveItem(ctx context.Context, cartID domain.ID) error
}

type entry struct {
	item      domain.LineItem
	confirmed int    // last quantity the backend persisted
	gen       uint64 // bumped by every operation issued against this item
}

// Store owns the line items of one session. Mutations are applied locally first and
// confirmed or rolled back when the gateway answers.
//
// Operations on the same cart id reach the gateway in the order they were issued, and only
// the answer to the most recently issued one may change what the user sees.
type Store struct {
	gw     Gateway
	sess   *session.Context
	logger *zap.Logger

	mu            sync.Mutex
	entries       []*entry
	tails         map[domain.ID]chan struct{}
	loadGen       uint64
	requiresLogin bool
	closed        bool
}

func NewStore(gw Gateway, sess *session.Context, logger *zap.Logger) *Store {
	return &Store{
		gw:     gw,
		sess:   sess,
		logger: logger,
		tails:  make(map[domain.ID]chan struct{}),
	}
}

// Load replaces the local list with the backend's. Without a session nothing is fetched and
// the store is left empty and flagged as requiring login.
func (s *Store) Load(ctx context.Context) error {
	sess, ok := s.sess.Current()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if !ok {
		s.entries = nil
		s.requiresLogin = true
		s.mu.Unlock()
		return domain.ErrUnauthenticated
	}
	s.requiresLogin = false
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	items, err := s.gw.FetchCart(ctx, sess.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.loadGen {
		s.logger.Debug("discarding superseded cart load", zap.String("user_id", sess.UserID))
		return err
	}
	s.entries = make([]*entry, 0, len(items))
	for _, it := range items {
		it.State = domain.LineConfirmed
		s.entries = append(s.entries, &entry{item: it, confirmed: it.Quantity})
	}
	if err != nil {
		s.logger.Warn("cart load failed, showing empty cart", zap.String("user_id", sess.UserID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) RequiresLogin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiresLogin
}

// Items returns a copy of the visible line items in display order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.LineItem, 0, len(s.entries))
	for _, e := range s.entries {
		if e.item.State.Visible() {
			items = append(items, e.item)
		}
	}
	return items
}

// Lookup returns the item with cartID in whatever state it is, including items whose removal
// is in flight.
func (s *Store) Lookup(cartID domain.ID) (domain.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.find(cartID); e != nil {
		return e.item, true
	}
	return domain.LineItem{}, false
}

// Total is the sum of unit price times quantity over the visible items.
func (s *Store) Total() domain.Price {
	return domain.Subtotal(s.Items())
}

// Close tears the store down. Answers that arrive afterwards are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
}

// SetQuantity changes an item's quantity. Quantities below 1 are rejected without a network
// call. On failure the item goes back to the last quantity the backend confirmed.
func (s *Store) SetQuantity(ctx context.Context, cartID domain.ID, quantity int) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	if _, ok := s.sess.Current(); !ok {
		return domain.ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	e := s.find(cartID)
	if e == nil || !e.item.State.Visible() {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", cartID, domain.ErrNotFound)
	}
	if e.item.State == domain.LinePending {
		s.mu.Unlock()
		return ErrItemPending
	}
	e.gen++
	gen := e.gen
	e.item.Quantity = quantity
	prev, done := s.enqueue(cartID)
	s.mu.Unlock()

	defer s.release(cartID, done)
	if err := wait(ctx, prev); err != nil {
		s.settleQuantity(e, gen, domain.LineItem{}, err)
		return err
	}

	updated, err := s.gw.UpdateQuantity(ctx, cartID, quantity)
	return s.settleQuantity(e, gen, updated, err)
}

func (s *Store) settleQuantity(e *entry, gen uint64, updated domain.LineItem, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.indexOf(e) < 0 {
		return err
	}
	latest := e.gen == gen

	switch {
	case err == nil:
		e.confirmed = updated.Quantity
		if latest {
			e.item = merge(e.item, updated)
		}
		return nil
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Info("line item gone on backend, dropping it", zap.String("cart_id", e.item.CartID.String()))
		s.drop(e)
		return err
	default:
		if latest {
			s.logger.Warn("quantity update failed, rolling back",
				zap.String("cart_id", e.item.CartID.String()),
				zap.Int("attempted", e.item.Quantity),
				zap.Int("restored", e.confirmed),
				zap.Error(err))
			e.item.Quantity = e.confirmed
		}
		return err
	}
}

// Remove hides the item immediately and deletes it on the backend. On failure the item
// reappears at its original position.
func (s *Store) Remove(ctx context.Context, cartID domain.ID) error {
	if _, ok := s.sess.Current(); !ok {
		return domain.ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	e := s.find(cartID)
	if e == nil || !e.item.State.Visible() {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", cartID, domain.ErrNotFound)
	}
	if e.item.State == domain.LinePending {
		s.mu.Unlock()
		return ErrItemPending
	}
	e.gen++
	gen := e.gen
	e.item.State = domain.LineRemoving
	prev, done := s.enqueue(cartID)
	s.mu.Unlock()

	defer s.release(cartID, done)
	err := wait(ctx, prev)
	if err == nil {
		err = s.gw.RemoveItem(ctx, cartID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.indexOf(e) < 0 {
		return err
	}
	if err == nil {
		s.drop(e)
		return nil
	}
	if e.gen == gen {
		s.logger.Warn("remove failed, restoring item", zap.String("cart_id", cartID.String()), zap.Error(err))
		e.item.State = domain.LineConfirmed
		e.item.Quantity = e.confirmed
	}
	return err
}

// Add puts a pending item in the cart right away and swaps it for the backend's line item
// once the backend assigns a cart id.
func (s *Store) Add(ctx context.Context, variantID domain.ID, quantity int) (domain.LineItem, error) {
	if quantity < 1 {
		return domain.LineItem{}, domain.ErrInvalidQuantity
	}
	sess, ok := s.sess.Current()
	if !ok {
		return domain.LineItem{}, domain.ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.LineItem{}, ErrStoreClosed
	}
	e := &entry{item: domain.LineItem{
		CartID:    domain.ID("pending-" + uuid.NewString()),
		VariantID: variantID,
		Quantity:  quantity,
		State:     domain.LinePending,
	}}
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	created, err := s.gw.AddItem(ctx, sess.UserID, variantID, quantity)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.indexOf(e) < 0 {
		return created, err
	}
	if err != nil {
		s.drop(e)
		return domain.LineItem{}, err
	}

	created.State = domain.LineConfirmed
	if existing := s.find(created.CartID); existing != nil && existing != e {
		// the backend folded the addition into a line the cart already has
		existing.item = merge(existing.item, created)
		existing.confirmed = created.Quantity
		s.drop(e)
		return existing.item, nil
	}
	e.item = created
	e.confirmed = created.Quantity
	return created, nil
}

// enqueue reserves the next slot for cartID. The caller must hold s.mu.
func (s *Store) enqueue(cartID domain.ID) (prev, done chan struct{}) {
	prev = s.tails[cartID]
	done = make(chan struct{})
	s.tails[cartID] = done
	return prev, done
}

func (s *Store) release(cartID domain.ID, done chan struct{}) {
	close(done)
	s.mu.Lock()
	if s.tails[cartID] == done {
		delete(s.tails, cartID)
	}
	s.mu.Unlock()
}

// wait blocks until the previous operation on the same item has finished.
func wait(ctx context.Context, prev chan struct{}) error {
	if prev == nil {
		return nil
	}
	select {
	case <-prev:
		return nil
	case <-ctx.Done():
		// keep the queue ordered: our slot must not open before the previous one does
		<-prev
		return fmt.Errorf("%w: %w", domain.ErrNetwork, ctx.Err())
	}
}

func (s *Store) find(cartID domain.ID) *entry {
	for _, e := range s.entries {
		if e.item.CartID == cartID {
			return e
		}
	}
	return nil
}

func (s *Store) indexOf(e *entry) int {
	for i, cur := range s.entries {
		if cur == e {
			return i
		}
	}
	return -1
}

func (s *Store) drop(e *entry) {
	if i := s.indexOf(e); i >= 0 {
		e.item.State = domain.LineGone
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
}

// merge refreshes local presentation fields from a backend item without losing fields the
// backend left out of its answer.
func merge(local, remote domain.LineItem) domain.LineItem {
	out := local
	out.Quantity = remote.Quantity
	out.State = domain.LineConfirmed
	if !remote.UnitPrice.IsZero() {
		out.UnitPrice = remote.UnitPrice
	}
	if remote.DisplayName != "" {
		out.DisplayName = remote.DisplayName
	}
	if remote.ImageRef != "" {
		out.ImageRef = remote.ImageRef
	}
	if remote.VariantLabel != "" {
		out.VariantLabel = remote.VariantLabel
	}
	if remote.Color != "" {
		out.Color = remote.Color
	}
	if remote.Size != "" {
		out.Size = remote.Size
	}
	return out
}

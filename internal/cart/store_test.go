package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type mockGateway struct {
	m        sync.Mutex
	items    []domain.LineItem
	fetchErr error

	fetchCalls  int
	updateCalls []int
	removeCalls []domain.ID
	addCalls    int

	onUpdate func(ctx context.Context, cartID domain.ID, quantity int) (domain.LineItem, error)
	onRemove func(ctx context.Context, cartID domain.ID) error
	onAdd    func(ctx context.Context, variantID domain.ID, quantity int) (domain.LineItem, error)
}

func (m *mockGateway) FetchCart(context.Context, string) ([]domain.LineItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return []domain.LineItem{}, m.fetchErr
	}
	out := make([]domain.LineItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *mockGateway) AddItem(ctx context.Context, _ string, variantID domain.ID, quantity int) (domain.LineItem, error) {
	m.m.Lock()
	m.addCalls++
	hook := m.onAdd
	m.m.Unlock()
	if hook != nil {
		return hook(ctx, variantID, quantity)
	}
	return domain.LineItem{CartID: "new", VariantID: variantID, Quantity: quantity, UnitPrice: domain.PriceFromInt(100)}, nil
}

func (m *mockGateway) UpdateQuantity(ctx context.Context, cartID domain.ID, quantity int) (domain.LineItem, error) {
	m.m.Lock()
	m.updateCalls = append(m.updateCalls, quantity)
	hook := m.onUpdate
	m.m.Unlock()
	if hook != nil {
		return hook(ctx, cartID, quantity)
	}
	return domain.LineItem{CartID: cartID, Quantity: quantity}, nil
}

func (m *mockGateway) RemoveItem(ctx context.Context, cartID domain.ID) error {
	m.m.Lock()
	m.removeCalls = append(m.removeCalls, cartID)
	hook := m.onRemove
	m.m.Unlock()
	if hook != nil {
		return hook(ctx, cartID)
	}
	return nil
}

func (m *mockGateway) updates() []int {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]int, len(m.updateCalls))
	copy(out, m.updateCalls)
	return out
}

func seededGateway() *mockGateway {
	return &mockGateway{items: []domain.LineItem{
		{CartID: "c1", VariantID: "v1", Quantity: 2, UnitPrice: domain.PriceFromInt(500), DisplayName: "Jeans"},
		{CartID: "c2", VariantID: "v2", Quantity: 1, UnitPrice: domain.PriceFromInt(250), DisplayName: "Belt"},
		{CartID: "c3", VariantID: "v3", Quantity: 1, UnitPrice: domain.PriceFromInt(100), DisplayName: "Socks"},
	}}
}

func newLoadedStore(t *testing.T, gw *mockGateway) *Store {
	t.Helper()
	sess := session.NewWith(session.Session{UserID: "user-1", Token: "token"})
	s := NewStore(gw, sess, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	return s
}

func quantityOf(t *testing.T, s *Store, id domain.ID) int {
	t.Helper()
	it, ok := s.Lookup(id)
	require.True(t, ok)
	return it.Quantity
}

func cartIDs(items []domain.LineItem) []domain.ID {
	ids := make([]domain.ID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.CartID)
	}
	return ids
}

func TestLoad_Success(t *testing.T) {
	s := newLoadedStore(t, seededGateway())

	items := s.Items()
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, domain.LineConfirmed, it.State)
	}
	assert.Equal(t, "1350", s.Total().String())
	assert.False(t, s.RequiresLogin())
}

func TestLoad_NoSession(t *testing.T) {
	gw := seededGateway()
	s := NewStore(gw, session.New(), zap.NewNop())

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.True(t, s.RequiresLogin())
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, gw.fetchCalls)
}

func TestLoad_BackendErrorShowsEmptyCart(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)
	require.Len(t, s.Items(), 3)

	gw.fetchErr = errors.New("backend returned 500")
	err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.Items())
	assert.True(t, s.Total().IsZero())
}

func TestSetQuantity_InvalidQuantity(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)

	for _, qty := range []int{0, -1} {
		err := s.SetQuantity(context.Background(), "c1", qty)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	}
	assert.Empty(t, gw.updates())
	assert.Equal(t, 2, quantityOf(t, s, "c1"))
}

func TestSetQuantity_Success(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)

	require.NoError(t, s.SetQuantity(context.Background(), "c1", 3))

	it, ok := s.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, 3, it.Quantity)
	assert.Equal(t, domain.LineConfirmed, it.State)
	assert.Equal(t, "Jeans", it.DisplayName)
	assert.Equal(t, "1850", s.Total().String())
}

func TestSetQuantity_FailureRollsBack(t *testing.T) {
	gw := seededGateway()
	gw.onUpdate = func(context.Context, domain.ID, int) (domain.LineItem, error) {
		return domain.LineItem{}, domain.ErrNetwork
	}
	s := newLoadedStore(t, gw)

	err := s.SetQuantity(context.Background(), "c1", 7)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, 2, quantityOf(t, s, "c1"))
	assert.Equal(t, "1350", s.Total().String())
}

func TestSetQuantity_NotFoundDropsItem(t *testing.T) {
	gw := seededGateway()
	gw.onUpdate = func(context.Context, domain.ID, int) (domain.LineItem, error) {
		return domain.LineItem{}, domain.ErrNotFound
	}
	s := newLoadedStore(t, gw)

	err := s.SetQuantity(context.Background(), "c2", 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, ok := s.Lookup("c2")
	assert.False(t, ok)
	assert.Equal(t, []domain.ID{"c1", "c3"}, cartIDs(s.Items()))
}

func TestSetQuantity_UnknownItem(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)

	err := s.SetQuantity(context.Background(), "missing", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, gw.updates())
}

func TestSetQuantity_LastIssuedWins(t *testing.T) {
	gw := seededGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	gw.onUpdate = func(_ context.Context, cartID domain.ID, qty int) (domain.LineItem, error) {
		started <- struct{}{}
		if qty == 3 {
			<-release
			return domain.LineItem{}, domain.ErrNetwork
		}
		return domain.LineItem{CartID: cartID, Quantity: qty}, nil
	}
	s := newLoadedStore(t, gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = s.SetQuantity(ctx, "c1", 3)
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		secondErr = s.SetQuantity(ctx, "c1", 5)
	}()
	require.Eventually(t, func() bool {
		return quantityOf(t, s, "c1") == 5
	}, time.Second, 5*time.Millisecond)

	// the second update is queued behind the first
	assert.Equal(t, []int{3}, gw.updates())

	close(release)
	wg.Wait()

	assert.ErrorIs(t, firstErr, domain.ErrNetwork)
	require.NoError(t, secondErr)
	assert.Equal(t, []int{3, 5}, gw.updates())
	assert.Equal(t, 5, quantityOf(t, s, "c1"))
}

func TestSetQuantity_RollbackToLastConfirmed(t *testing.T) {
	gw := seededGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	gw.onUpdate = func(_ context.Context, cartID domain.ID, qty int) (domain.LineItem, error) {
		started <- struct{}{}
		if qty == 3 {
			<-release
			return domain.LineItem{CartID: cartID, Quantity: qty}, nil
		}
		return domain.LineItem{}, domain.ErrNetwork
	}
	s := newLoadedStore(t, gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.SetQuantity(ctx, "c1", 3)
	}()
	<-started

	wg.Add(1)
	var secondErr error
	go func() {
		defer wg.Done()
		secondErr = s.SetQuantity(ctx, "c1", 6)
	}()
	require.Eventually(t, func() bool {
		return quantityOf(t, s, "c1") == 6
	}, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	assert.ErrorIs(t, secondErr, domain.ErrNetwork)
	assert.Equal(t, 3, quantityOf(t, s, "c1"))
}

func TestRemove_Success(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)

	require.NoError(t, s.Remove(context.Background(), "c2"))

	_, ok := s.Lookup("c2")
	assert.False(t, ok)
	assert.Equal(t, []domain.ID{"c1", "c3"}, cartIDs(s.Items()))
	assert.Equal(t, "1100", s.Total().String())
}

func TestRemove_HiddenWhileInFlight(t *testing.T) {
	gw := seededGateway()
	release := make(chan struct{})
	gw.onRemove = func(context.Context, domain.ID) error {
		<-release
		return nil
	}
	s := newLoadedStore(t, gw)

	done := make(chan error, 1)
	go func() { done <- s.Remove(context.Background(), "c2") }()

	require.Eventually(t, func() bool {
		it, ok := s.Lookup("c2")
		return ok && it.State == domain.LineRemoving
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.ID{"c1", "c3"}, cartIDs(s.Items()))

	close(release)
	require.NoError(t, <-done)
}

func TestRemove_FailureRestoresPosition(t *testing.T) {
	gw := seededGateway()
	gw.onRemove = func(context.Context, domain.ID) error {
		return domain.ErrNetwork
	}
	s := newLoadedStore(t, gw)

	err := s.Remove(context.Background(), "c2")
	assert.ErrorIs(t, err, domain.ErrNetwork)

	items := s.Items()
	assert.Equal(t, []domain.ID{"c1", "c2", "c3"}, cartIDs(items))
	assert.Equal(t, domain.LineConfirmed, items[1].State)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestRemove_QueuedBehindUpdate(t *testing.T) {
	gw := seededGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	gw.onUpdate = func(_ context.Context, cartID domain.ID, qty int) (domain.LineItem, error) {
		started <- struct{}{}
		<-release
		return domain.LineItem{CartID: cartID, Quantity: qty}, nil
	}
	s := newLoadedStore(t, gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.SetQuantity(ctx, "c1", 4)
	}()
	<-started
	var removeErr error
	go func() {
		defer wg.Done()
		removeErr = s.Remove(ctx, "c1")
	}()
	require.Eventually(t, func() bool {
		it, ok := s.Lookup("c1")
		return ok && it.State == domain.LineRemoving
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, gw.removeCalls)

	close(release)
	wg.Wait()

	require.NoError(t, removeErr)
	_, ok := s.Lookup("c1")
	assert.False(t, ok)
}

func TestAdd_PendingThenConfirmed(t *testing.T) {
	gw := seededGateway()
	release := make(chan struct{})
	gw.onAdd = func(_ context.Context, variantID domain.ID, qty int) (domain.LineItem, error) {
		<-release
		return domain.LineItem{CartID: "c9", VariantID: variantID, Quantity: qty, UnitPrice: domain.PriceFromInt(300)}, nil
	}
	s := newLoadedStore(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := s.Add(context.Background(), "v9", 2)
		done <- err
	}()

	require.Eventually(t, func() bool {
		items := s.Items()
		return len(items) == 4 && items[3].State == domain.LinePending
	}, time.Second, 5*time.Millisecond)

	pending := s.Items()[3]
	assert.ErrorIs(t, s.SetQuantity(context.Background(), pending.CartID, 3), ErrItemPending)

	close(release)
	require.NoError(t, <-done)

	it, ok := s.Lookup("c9")
	require.True(t, ok)
	assert.Equal(t, domain.LineConfirmed, it.State)
	assert.Len(t, s.Items(), 4)
	assert.Equal(t, "1950", s.Total().String())
}

func TestAdd_FailureDropsPending(t *testing.T) {
	gw := seededGateway()
	gw.onAdd = func(context.Context, domain.ID, int) (domain.LineItem, error) {
		return domain.LineItem{}, domain.ErrInvalidVariant
	}
	s := newLoadedStore(t, gw)

	_, err := s.Add(context.Background(), "bogus", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidVariant)
	assert.Len(t, s.Items(), 3)
}

func TestAdd_MergesIntoExistingLine(t *testing.T) {
	gw := seededGateway()
	gw.onAdd = func(_ context.Context, variantID domain.ID, qty int) (domain.LineItem, error) {
		return domain.LineItem{CartID: "c1", VariantID: variantID, Quantity: 2 + qty}, nil
	}
	s := newLoadedStore(t, gw)

	it, err := s.Add(context.Background(), "v1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("c1"), it.CartID)
	assert.Equal(t, 3, it.Quantity)
	assert.Equal(t, []domain.ID{"c1", "c2", "c3"}, cartIDs(s.Items()))
	assert.Equal(t, "Jeans", it.DisplayName)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)

	_, err := s.Add(context.Background(), "v1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 0, gw.addCalls)
}

func TestClose_IgnoresLateResponses(t *testing.T) {
	gw := seededGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	gw.onUpdate = func(_ context.Context, cartID domain.ID, qty int) (domain.LineItem, error) {
		started <- struct{}{}
		<-release
		return domain.LineItem{}, domain.ErrNetwork
	}
	s := newLoadedStore(t, gw)

	done := make(chan error, 1)
	go func() { done <- s.SetQuantity(context.Background(), "c1", 4) }()
	<-started

	s.Close()
	close(release)
	assert.ErrorIs(t, <-done, domain.ErrNetwork)

	assert.Empty(t, s.Items())
	assert.ErrorIs(t, s.SetQuantity(context.Background(), "c1", 2), ErrStoreClosed)
	assert.ErrorIs(t, s.Load(context.Background()), ErrStoreClosed)
}

func TestLogout_ClosesStoreThroughHook(t *testing.T) {
	gw := seededGateway()
	sess := session.NewWith(session.Session{UserID: "user-1", Token: "token"})
	s := NewStore(gw, sess, zap.NewNop())
	sess.OnLogout(s.Close)
	require.NoError(t, s.Load(context.Background()))

	sess.Logout()

	assert.Empty(t, s.Items())
	assert.ErrorIs(t, s.Remove(context.Background(), "c1"), domain.ErrUnauthenticated)
}

func TestTotal_MatchesConfirmedSetAfterMutations(t *testing.T) {
	gw := seededGateway()
	s := newLoadedStore(t, gw)
	ctx := context.Background()

	require.NoError(t, s.SetQuantity(ctx, "c1", 1))
	require.NoError(t, s.Remove(ctx, "c3"))
	require.NoError(t, s.SetQuantity(ctx, "c2", 4))

	assert.Equal(t, "1500", s.Total().String())
	assert.True(t, domain.Subtotal(s.Items()).Equal(s.Total().Decimal))
}

package storefront

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// FakeBackend implements Gateway over an in-memory cart
type FakeBackend struct {
	mu          sync.Mutex
	Items       []domain.LineItem
	Orders      []domain.Order
	CreateErr   error
	CreateCalls int
	// Block, when set, holds CreateOrder until it is closed; Started gets one value per call.
	Block   chan struct{}
	Started chan struct{}
	Submitted   []domain.OrderSubmission
	nextID      int
}

func (f *FakeBackend) factory() GatewayFactory {
	return func(*session.Context) Gateway { return f }
}

func (f *FakeBackend) FetchCart(_ context.Context, _ string) ([]domain.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LineItem, len(f.Items))
	copy(out, f.Items)
	return out, nil
}

func (f *FakeBackend) AddItem(_ context.Context, _ string, variantID domain.ID, quantity int) (domain.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	it := domain.LineItem{
		CartID:    domain.ID(fmt.Sprintf("c%d", f.nextID+100)),
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: domain.PriceFromInt(100),
		State:     domain.LineConfirmed,
	}
	f.Items = append(f.Items, it)
	return it, nil
}

func (f *FakeBackend) UpdateQuantity(_ context.Context, cartID domain.ID, quantity int) (domain.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Items {
		if f.Items[i].CartID == cartID {
			f.Items[i].Quantity = quantity
			return f.Items[i], nil
		}
	}
	return domain.LineItem{}, domain.ErrNotFound
}

func (f *FakeBackend) RemoveItem(_ context.Context, cartID domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Items {
		if f.Items[i].CartID == cartID {
			f.Items = append(f.Items[:i], f.Items[i+1:]...)
			break
		}
	}
	return nil
}

func (f *FakeBackend) CreateOrder(_ context.Context, sub domain.OrderSubmission, _ string) (domain.ID, error) {
	f.mu.Lock()
	f.CreateCalls++
	block, started := f.Block, f.Started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.Submitted = append(f.Submitted, sub)
	f.nextID++
	id := domain.ID(fmt.Sprintf("ord-%d", f.nextID))
	f.Orders = append(f.Orders, domain.Order{ID: id, Status: domain.OrderPending, Total: sub.Total})
	f.Items = nil
	return id, nil
}

func (f *FakeBackend) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CreateCalls
}

func (f *FakeBackend) GetOrder(_ context.Context, orderID domain.ID) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.Orders {
		if o.ID == orderID {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (f *FakeBackend) ListOrders(_ context.Context, _ string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Order, len(f.Orders))
	copy(out, f.Orders)
	return out, nil
}

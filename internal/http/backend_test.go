package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type backendItem struct {
	CartID         int    `json:"cartId"`
	ProductColorID int    `json:"productColorId"`
	Quantity       int    `json:"quantity"`
	Price          string `json:"price"`
	Name           string `json:"name"`
}

// fakeBackend is a small in-memory version of the cart and order REST API
type fakeBackend struct {
	mu          sync.Mutex
	items       []backendItem
	orders      []map[string]any
	nextID      int
	createCalls int
	rejectOrder string
	failCart    bool
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		nextID: 100,
		items: []backendItem{
			{CartID: 1, ProductColorID: 11, Quantity: 2, Price: "₹ 500.00", Name: "Jeans"},
			{CartID: 2, ProductColorID: 12, Quantity: 1, Price: "₹ 250.00", Name: "Belt"},
		},
	}

	r := chi.NewRouter()
	r.Get("/cart/get/{userId}", b.getCart)
	r.Post("/cart/add", b.addItem)
	r.Put("/cart/update/{cartId}", b.updateItem)
	r.Delete("/cart/remove/{cartId}", b.removeItem)
	r.Post("/orders/create", b.createOrder)
	r.Get("/orders/getbyid/{id}", b.getOrder)
	r.Get("/orders/userorder/{userId}", b.listOrders)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (b *fakeBackend) getCart(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCart {
		b.write(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
		return
	}
	b.write(w, http.StatusOK, map[string]any{"cartItems": b.items})
}

func (b *fakeBackend) addItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductColorID domain.ID `json:"productColorId"`
		Quantity       int       `json:"quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	id, err := strconv.Atoi(req.ProductColorID.String())
	if err != nil || id >= 900 {
		b.write(w, http.StatusNotFound, map[string]string{"error": "product color not found"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	it := backendItem{CartID: b.nextID, ProductColorID: id, Quantity: req.Quantity, Price: "100", Name: "Cap"}
	b.items = append(b.items, it)
	b.write(w, http.StatusCreated, map[string]any{"cartItem": it})
}

func (b *fakeBackend) updateItem(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "cartId"))
	var req struct {
		Quantity int `json:"quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].CartID == id {
			b.items[i].Quantity = req.Quantity
			b.write(w, http.StatusOK, map[string]any{"cartItem": b.items[i]})
			return
		}
	}
	b.write(w, http.StatusNotFound, map[string]string{"error": "cart item not found"})
}

func (b *fakeBackend) removeItem(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "cartId"))
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].CartID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			break
		}
	}
	b.write(w, http.StatusOK, map[string]string{"message": "removed"})
}

func (b *fakeBackend) createOrder(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	if b.rejectOrder != "" {
		b.write(w, http.StatusBadRequest, map[string]string{"error": b.rejectOrder})
		return
	}
	b.nextID++
	body["id"] = b.nextID
	body["status"] = 1
	b.orders = append(b.orders, body)
	b.items = nil
	b.write(w, http.StatusCreated, map[string]any{"orderId": b.nextID})
}

func (b *fakeBackend) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if strconv.Itoa(o["id"].(int)) == id {
			b.write(w, http.StatusOK, map[string]any{"order": o})
			return
		}
	}
	b.write(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
}

func (b *fakeBackend) listOrders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.write(w, http.StatusOK, map[string]any{"orders": b.orders})
}

func (b *fakeBackend) orderCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

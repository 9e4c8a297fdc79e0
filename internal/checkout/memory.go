package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CleanupInterval is how often expired snapshots are purged.
const CleanupInterval = 30 * time.Second

type memoryEntry struct {
	snap      domain.CartSnapshot
	expiresAt time.Time
}

// MemoryStore is the SnapshotStore used when no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	claims  map[string]time.Time
	ttl     time.Duration
	nowFunc func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]memoryEntry),
		claims:      make(map[string]time.Time),
		ttl:         ttl,
		nowFunc:     time.Now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
	for id, expiresAt := range s.claims {
		if now.After(expiresAt) {
			delete(s.claims, id)
		}
	}
}

func (s *MemoryStore) Save(_ context.Context, snap domain.CartSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.LineItem, len(snap.Items))
	copy(items, snap.Items)
	snap.Items = items
	s.entries[snap.CheckoutID] = memoryEntry{snap: snap, expiresAt: s.nowFunc().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, checkoutID string) (domain.CartSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[checkoutID]
	if !ok || s.nowFunc().After(e.expiresAt) {
		return domain.CartSnapshot{}, ErrSnapshotNotFound
	}
	snap := e.snap
	snap.Items = make([]domain.LineItem, len(e.snap.Items))
	copy(snap.Items, e.snap.Items)
	return snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, checkoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, checkoutID)
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, checkoutID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	if expiresAt, ok := s.claims[checkoutID]; ok && !now.After(expiresAt) {
		return false, nil
	}
	s.claims[checkoutID] = now.Add(s.ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, checkoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, checkoutID)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	close(s.stopCleanup)
	s.wg.Wait()
}

package checkout

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrSnapshotNotFound = errors.New("checkout not found or expired")

// SnapshotStore keeps in-progress checkouts between requests.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.CartSnapshot) error
	Get(ctx context.Context, checkoutID string) (domain.CartSnapshot, error)
	Delete(ctx context.Context, checkoutID string) error

	// Claim marks checkoutID as being submitted. ok is false while another claim is held.
	// Claims expire with the snapshot TTL.
	Claim(ctx context.Context, checkoutID string) (ok bool, err error)
	Release(ctx context.Context, checkoutID string) error
}

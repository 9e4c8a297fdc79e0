package storefront

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// Registry keeps one workspace per signed-in user.
type Registry struct {
	newGateway GatewayFactory
	builder    *checkout.Builder
	snapshots  checkout.SnapshotStore
	publisher  order.Publisher
	logger     *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(newGateway GatewayFactory, snapshots checkout.SnapshotStore, publisher order.Publisher, logger *zap.Logger) *Registry {
	return &Registry{
		newGateway: newGateway,
		builder:    checkout.NewBuilder(),
		snapshots:  snapshots,
		publisher:  publisher,
		logger:     logger,
		workspaces: make(map[string]*Workspace),
	}
}

// workspaceKey identifies the workspace a session may use. Only a locally verified token can
// act on the user's shared workspace; an unverified one gets a workspace of its own, so a
// forged token cannot replace or log out someone else's session.
func workspaceKey(s session.Session) string {
	if s.Verified {
		return s.UserID
	}
	return s.UserID + "\x00" + s.Token
}

// Workspace returns the workspace for s, creating it on first use. A newer verified token
// replaces the stored one.
func (r *Registry) Workspace(s session.Session) (*Workspace, error) {
	if !s.Valid() {
		return nil, domain.ErrUnauthenticated
	}
	key := workspaceKey(s)

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.workspaces[key]; ok {
		if cur, _ := w.sess.Current(); cur.Token != s.Token {
			if err := w.sess.Login(s.UserID, s.Token); err != nil {
				return nil, err
			}
		}
		return w, nil
	}

	sess := session.NewWith(s)
	gw := r.newGateway(sess)
	logger := r.logger.With(zap.String("user_id", s.UserID))
	store := cart.NewStore(gw, sess, logger)
	sess.OnLogout(store.Close)

	w := &Workspace{
		sess:         sess,
		gw:           gw,
		store:        store,
		builder:      r.builder,
		snapshots:    r.snapshots,
		publisher:    r.publisher,
		logger:       logger,
		coordinators: make(map[string]*order.Coordinator),
	}
	r.workspaces[key] = w
	r.logger.Debug("workspace opened", zap.String("user_id", s.UserID))
	return w, nil
}

// Logout ends the session's workspace and tears down its cart store. Late backend answers
// for that store are ignored.
func (r *Registry) Logout(s session.Session) {
	r.logout(workspaceKey(s))
}

func (r *Registry) logout(key string) {
	r.mu.Lock()
	w, ok := r.workspaces[key]
	delete(r.workspaces, key)
	r.mu.Unlock()
	if !ok {
		return
	}
	userID := w.UserID()
	w.sess.Logout()
	r.logger.Info("session closed", zap.String("user_id", userID))
}

// Close logs every user out.
func (r *Registry) Close() {
	r.mu.Lock()
	keys := make([]string, 0, len(r.workspaces))
	for key := range r.workspaces {
		keys = append(keys, key)
	}
	r.mu.Unlock()
	for _, key := range keys {
		r.logout(key)
	}
}

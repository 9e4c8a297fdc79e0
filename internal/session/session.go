package session

import (
	"context"
	"errors"
	"sync"
)

var ErrNoSession = errors.New("session requires a user id and a token")

// Session identifies the logged in user and the bearer token sent to the backend.
type Session struct {
	UserID string
	Token  string
	// Verified is set when the token signature was checked locally.
	Verified bool
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}

// Context owns the session for one user agent. Components receive it by reference instead of
// reading credentials from ambient storage.
type Context struct {
	mu       sync.RWMutex
	current  Session
	onLogout []func()
}

func New() *Context {
	return &Context{}
}

// NewWith returns a Context already logged in as s.
func NewWith(s Session) *Context {
	c := New()
	_ = c.Login(s.UserID, s.Token)
	return c
}

func (c *Context) Login(userID, token string) error {
	s := Session{UserID: userID, Token: token}
	if !s.Valid() {
		return ErrNoSession
	}
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	return nil
}

// Logout clears the session and runs the registered logout hooks.
func (c *Context) Logout() {
	c.mu.Lock()
	c.current = Session{}
	hooks := c.onLogout
	c.onLogout = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (c *Context) OnLogout(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLogout = append(c.onLogout, fn)
}

// Current returns the active session; ok is false when nobody is logged in.
func (c *Context) Current() (Session, bool) {
	if c == nil {
		return Session{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current.Valid()
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok || !s.Valid() {
		return Session{}, false
	}
	return s, true
}

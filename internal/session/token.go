package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the fields the storefront reads from the backend issued JWT.
type Claims struct {
	UserID   domain.ID `json:"userId"`
	Username string    `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// FromBearer builds a Session from an Authorization header value. With an empty secret the
// signature is not checked here; the backend verifies it on every forwarded call.
func FromBearer(header string, secret []byte) (Session, error) {
	if header == "" {
		return Session{}, ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return Session{}, fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}

	claims := &Claims{}
	if len(secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	s := Session{UserID: claims.UserID.String(), Token: token, Verified: len(secret) > 0}
	if !s.Valid() {
		return Session{}, fmt.Errorf("%w: no userId claim", ErrInvalidToken)
	}
	return s, nil
}

package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	breakerName         = "backend"
	breakerMaxFailures  = 5
	breakerOpenInterval = 30 * time.Second
)

func defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerOpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
	}
}

// breakerSuccess counts only transport failures and 5xx answers against the backend.
// A 4xx is the backend working as intended.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrNetwork) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status < http.StatusInternalServerError
	}
	return true
}

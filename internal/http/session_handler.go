package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

// LogoutHandler drops the workspace of the caller's session. In-flight cart answers for it are ignored.
func LogoutHandler(registry *storefront.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		registry.Logout(s)
		w.WriteHeader(http.StatusNoContent)
	}
}

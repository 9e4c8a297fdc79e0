package http

import (
	"slices"

	"github.com/rs/cors"
)

// NewCORS builds the CORS policy for the storefront. Credentials are only allowed for an
// explicit origin list.
func NewCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: len(origins) > 0 && !slices.Contains(origins, "*"),
	})
}

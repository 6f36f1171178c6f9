package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS builds the cross-origin middleware for the agent desktop and admin
// UI. Credentials are allowed because the auth token travels in a header;
// preflight results may be cached for five minutes.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler
}

package http

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS mirrors original_source/server.py's CORSMiddleware: every origin,
// every method, every header, credentials allowed. Grounded on kubernaut's
// own chi+cors wiring pattern (test/integration/gateway/cors_test.go).
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

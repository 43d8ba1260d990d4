package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/infra/secret"
)

// BearerAuth rejects any request whose Authorization header does not carry
// a valid bearer token signed with the loaded secret. In local mode, where
// no signing key is loaded, verification is skipped entirely so the route
// stays reachable without a token, mirroring
// original_source/server.py's HTTPBearer(auto_error=False) dependency.
func BearerAuth(store *secret.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store.IsLocal() {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := store.VerifyBearer(r.Header.Get("Authorization")); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one structured line per request: method, path, status,
// and latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

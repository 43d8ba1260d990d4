package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/application/coordinator"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// healthHandler is unconditionally "ok": it answers as soon as the process
// can serve requests, with no dependency checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyHandler reports whether check succeeds, used for the database
// connection and, transitively, whether migrations have completed.
func readyHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		if err := check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// runHandler triggers one coordinator.Run and reports its summary. It
// never accepts a request body — a run always scans the configured source
// root in full.
func runHandler(runner Runner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := runner.Run(r.Context())
		if err != nil {
			logger.Error("coordinator run failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, coordinator.Summary{Errors: []coordinator.RunError{{Error: err.Error()}}})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

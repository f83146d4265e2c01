package server

import (
	"context"
	"net/http"
	"time"
)

// pinger is implemented by the store client to verify database connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealthz returns the /healthz handler.  The check reports healthy only
// if the backend database responds to a ping within the configured timeout.
func handleHealthz(db pinger, timeout time.Duration, log Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Error(err, "health check failed", "timeout", timeout)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

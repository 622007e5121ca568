package housekeeping

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type ReadinessDeps interface {
	Ping(ctx context.Context) error
}

// Handler serves /healthz, /readyz and /jobs for the standalone housekeeping process.
func Handler(s *Scheduler, deps ReadinessDeps, isShuttingDown func() bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if isShuttingDown() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		if deps != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := deps.Ping(ctx); err != nil {
				http.Error(w, "backend not ready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/jobs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	})

	return mux
}

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sumarte/internal/shared/middleware"
)

// SetupRoutes configures the HTTP routes and returns the final handler
// with middleware. The ledger is driven through the admin tool and the
// service layer; the HTTP surface is operational only.
func SetupRoutes(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth(deps))
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Logging(middleware.Telemetry(middleware.Tracing(mux)))
}

func handleHealth(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := deps.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}

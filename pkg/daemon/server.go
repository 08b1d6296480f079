package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/qaorchestrator/core/pkg/metrics"
)

// NewServer builds the read-only observability HTTP server: the snapshot
// endpoint plus the health/readiness/metrics handlers already exposed by
// pkg/metrics. CORS is permissive-by-default for a local dashboard origin,
// grounded in jordigilh-kubernaut's go-chi/chi and go-chi/cors dependency.
func (d *Daemon) NewServer() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/snapshot", d.handleSnapshot)
	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	return r
}

func (d *Daemon) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := d.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

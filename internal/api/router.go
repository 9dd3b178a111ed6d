package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/api/handler"
	"github.com/bcnelson/homesync/internal/api/middleware"
)

// NewRouter creates a new HTTP router with all routes configured.
// metricsHandler may be nil.
func NewRouter(loop handler.Loop, metricsHandler http.Handler, token string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	statusHandler := handler.NewStatusHandler(loop)
	r.NotFound(statusHandler.NotFound)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Get("/status", statusHandler.Get)

		r.With(middleware.Auth(token)).Post("/reconcile", statusHandler.Trigger)
	})

	return r
}

// NewServer wraps the router in an http.Server with the same timeouts the
// rest of the service uses.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

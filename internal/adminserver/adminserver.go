// Package adminserver exposes a small read-only HTTP surface over a running
// crawl: a liveness check, a Prometheus scrape endpoint, and a JSON stats
// snapshot. It never touches the store's maps directly — only Snapshot(),
// matching the crawl core's single-threaded assumption (§5).
package adminserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klppl/spider/internal/metrics"
	"github.com/klppl/spider/internal/store"
)

// Server serves /healthz, /metrics, and /stats for one crawl run.
type Server struct {
	addr    string
	store   *store.Store
	metrics *metrics.Metrics
	router  *chi.Mux
}

// New builds a Server bound to addr. metrics may be nil, in which case
// /metrics responds 404.
func New(addr string, st *store.Store, m *metrics.Metrics) *Server {
	s := &Server{addr: addr, store: st, metrics: m}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.store.Snapshot())
	})

	if s.metrics != nil {
		r.Get("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting admin server", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("admin server shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("admin server error", "error", err)
	}
}

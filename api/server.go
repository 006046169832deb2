// Package api exposes the storefront engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/fulfillment/engine"
)

// maxBodyBytes caps JSON and webhook request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the engine.
type Server struct {
	eng     *engine.Engine
	logger  *slog.Logger
	metrics http.Handler
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler mounts h on the configured metrics path.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New creates a Server for eng.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		eng:     eng,
		logger:  eng.Logger(),
		origins: eng.Config().CORSOrigins,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	cfg := s.eng.Config()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.handleProducts)
		r.Post("/checkout", s.handleCheckout)
		r.Get("/order/{checkoutId}", s.handleOrder)
		r.Get("/download", s.handleDownload)
		r.Post("/sync-purchases", s.handleSyncPurchases)
		r.Post("/analytics/track", s.handleTrack)
		r.Get("/analytics/stats", s.handleStats)
		if cfg.Fulfillment.EnableDebugRoutes {
			r.Get("/debug/files", s.handleDebugFiles)
		}
	})

	r.Post("/webhooks/lemon-squeezy", s.handleWebhook)

	if s.metrics != nil && !cfg.Metrics.Disabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, s.metrics)
	}

	return r
}

// cors allows the configured origins, every method and every header.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allow := s.allowOrigin(origin); allow != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", "*")
			h.Set("Access-Control-Allow-Headers", "*")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

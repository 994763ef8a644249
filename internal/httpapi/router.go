// Package httpapi fronts the query router (C9) with an HTTP endpoint:
// chi routing, CORS, request logging, and JWT-bearer authentication.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config configures the router's middleware stack.
type Config struct {
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string
	QueryDeadline  time.Duration
}

// NewRouter assembles the full HTTP surface: health checks plus the
// authenticated /api/v1/query endpoint.
func NewRouter(engine QueryEngine, cfg Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Logger(logger))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthCheck)

	validator := NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
	handler := &QueryHandler{Engine: engine, Deadline: cfg.QueryDeadline, Logger: logger}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(validator))
		r.Post("/query", handler.ServeHTTP)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

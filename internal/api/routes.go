package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"secret.share/config"
	"secret.share/web"
)

// RequestTimeout bounds a single request inside the router. The server's
// write timeout must exceed it.
const RequestTimeout = 10 * time.Second

func SetupRouter(s Secrets, cfg *config.Config) *chi.Mux {
	h := NewHandler(s, cfg)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// CORS
	r.Use(CORS(CORSConfig{
		AllowedOrigins: []string{cfg.Server.BaseURL},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		revealLimit := func(next http.Handler) http.Handler { return next }

		if cfg.RateLimit.Enabled {
			apiLimiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
			revealLimiter := NewRateLimiter(cfg.RateLimit.RevealPerMin, time.Minute)

			r.Use(apiLimiter.Middleware)
			revealLimit = revealLimiter.Middleware
		}
		r.Use(JSONOnly)

		r.Route("/secrets", func(r chi.Router) {
			r.Post("/", h.ShareSecret)
			r.With(revealLimit).Post("/{id}", h.OpenSecret)
		})
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/s/{id}", h.RevealPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))

	return r
}

package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"secret.share/config"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("it keeps a valid caller id", func(t *testing.T) {
		id := "0b9f8c1e-7d3a-4f6b-9a2e-1c5d8e7f6a4b"
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, id)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, id, seen)
		require.Equal(t, id, rec.Header().Get(requestIDHeader))
	})

	t.Run("it replaces a garbage id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "<script>")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.NotEqual(t, "<script>", seen)
		require.Len(t, seen, 36)
		require.Equal(t, seen, rec.Header().Get(requestIDHeader))
	})
}

func TestCORS(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://share.example.com"},
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/secrets", nil)
		req.Header.Set("Origin", "https://share.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "https://share.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("preflight from foreign origin is not answered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/secrets", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/secrets", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestLoggerOmitsSecretIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := clog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(clog.WithLogger(req.Context(), logger)))
		})
	})
	r.Use(Logger)
	r.Get("/s/{id}", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/k3pT9xVqLz", nil))

	require.Contains(t, buf.String(), "route=/s/{id}")
	require.NotContains(t, buf.String(), "k3pT9xVqLz")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for range 3 {
		require.True(t, rl.Allow("10.0.0.1"))
	}
	require.False(t, rl.Allow("10.0.0.1"))
	require.True(t, rl.Allow("10.0.0.2"))
}

func TestRevealRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerMin = 100
		c.RateLimit.RevealPerMin = 2
	})

	for range 2 {
		resp, _ := post(t, srv.URL+"/api/secrets/missing", OpenRequest{Passphrase: "p"})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, _ := post(t, srv.URL+"/api/secrets/missing", OpenRequest{Passphrase: "p"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get("Retry-After"))

	// Sharing has its own budget.
	share(t, srv, ShareRequest{Message: "m", Passphrase: "p"})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"

	"secret.share/config"
	"secret.share/internal/policy"
	"secret.share/internal/secrets"
	"secret.share/web"
)

// maxBodyBytes comfortably fits the largest valid share request.
const maxBodyBytes = 64 * 1024

// Secrets is the engine the handlers drive.
type Secrets interface {
	Share(ctx context.Context, message, passphrase []byte, ttl time.Duration) (string, error)
	Open(ctx context.Context, id string, passphrase []byte) ([]byte, error)
}

type Handler struct {
	secrets Secrets
	config  *config.Config
}

func NewHandler(s Secrets, cfg *config.Config) *Handler {
	return &Handler{
		secrets: s,
		config:  cfg,
	}
}

type ShareRequest struct {
	Message      string `json:"message"`
	Passphrase   string `json:"passphrase"`
	ExpireAmount string `json:"expire_amount,omitempty"`
	ExpireUnit   string `json:"expire_unit,omitempty"`
}

type ShareResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

type OpenRequest struct {
	Passphrase string `json:"passphrase"`
}

type OpenResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ShareSecret(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if !h.decode(w, r, &req) {
		return
	}

	ttl, err := policy.ParseExpire(req.ExpireAmount, req.ExpireUnit)
	if err != nil {
		h.error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := h.secrets.Share(r.Context(), []byte(req.Message), []byte(req.Passphrase), ttl)
	if err != nil {
		var violation *policy.Violation
		if errors.As(err, &violation) {
			h.error(w, http.StatusUnprocessableEntity, violation.Message)
			return
		}
		clog.FromContext(r.Context()).Errorf("share failed: %v", err)
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, ShareResponse{
		ID:        id,
		URL:       h.config.Server.BaseURL + "/s/" + id,
		ExpiresIn: int64(ttl / time.Second),
	})
}

func (h *Handler) OpenSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req OpenRequest
	if !h.decode(w, r, &req) {
		return
	}

	message, err := h.secrets.Open(r.Context(), id, []byte(req.Passphrase))
	if err != nil {
		if errors.Is(err, secrets.ErrGenericFailure) {
			h.error(w, http.StatusNotFound, secrets.ErrGenericFailure.Error())
			return
		}
		clog.FromContext(r.Context()).Errorf("open failed: %v", err)
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The message must not linger in shared caches.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, OpenResponse{Message: string(message)})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) RevealPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "reveal.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

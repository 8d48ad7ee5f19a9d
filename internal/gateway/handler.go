// Package gateway implements the edge request pipeline: route
// classification, one-time token verification, and proxying with
// header-based identity propagation.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markato-labs/markato/internal/identity"
)

// Verifier validates a raw bearer credential.
type Verifier interface {
	Verify(raw string) (identity.Identity, error)
}

// MessageBody is the error envelope the gateway itself returns. Internal
// service bodies pass through untouched and keep their own shape.
type MessageBody struct {
	Message string `json:"message"`
}

// Message writes a gateway error envelope.
func Message(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(MessageBody{Message: message})
}

// Handler is the gateway controller: classifier, verifier and propagator
// composed into the end-to-end pipeline.
type Handler struct {
	logger   *slog.Logger
	verifier Verifier
	routes   *Table
	proxy    *Proxy
}

// NewHandler constructs the gateway controller.
func NewHandler(logger *slog.Logger, verifier Verifier, routes *Table, proxy *Proxy) *Handler {
	return &Handler{logger: logger, verifier: verifier, routes: routes, proxy: proxy}
}

// MountRoutes registers the health endpoint and the forwarding pipeline.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("API Gateway is running"))
	})
	r.Handle("/*", http.HandlerFunc(h.handle))
}

// handle runs the pipeline for a single request. Within a request the order
// is strict: classification, then verification, then forwarding; no
// downstream call happens before verification succeeds.
func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.routes.Backend(r.URL.Path)
	if !ok {
		Message(w, http.StatusNotFound, "route not found")
		return
	}

	// Public routes skip verification entirely, even when an Authorization
	// header is present and invalid.
	if h.routes.IsPublic(r.URL.Path) {
		h.proxy.Forward(w, r, nil, backend)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		Message(w, http.StatusUnauthorized, "Unauthorized: missing or invalid token format")
		return
	}

	id, err := h.verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		// The reason stays in the log; the client sees one opaque answer.
		h.logger.Warn("token verification failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		Message(w, http.StatusUnauthorized, "Unauthorized: invalid or expired token")
		return
	}

	h.proxy.Forward(w, r, &id, backend)
}

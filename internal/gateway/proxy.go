package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/markato-labs/markato/internal/identity"
)

// Proxy forwards a request to an internal service and relays the response
// unchanged. It keeps no state across calls: no retries, no caching, every
// request is forwarded at most once.
type Proxy struct {
	client *http.Client
	logger *slog.Logger
}

// NewProxy constructs a Proxy. The timeout bounds each outbound call.
func NewProxy(logger *slog.Logger, timeout time.Duration) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Forward issues the outbound call for an inbound request. When id is
// non-nil the trust headers are attached; the Authorization header is never
// forwarded, so trust past this point is headers-only.
//
// The outbound request shares the inbound context: a client disconnect
// cancels the downstream call.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, id *identity.Identity, backend Backend) {
	target := backend.BaseURL + rewritePath(r.URL.Path, backend.StripPrefix)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		p.logger.Error("build proxy request", slog.String("target", target), slog.Any("error", err))
		Message(w, http.StatusInternalServerError, "internal gateway error")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if id != nil {
		id.Apply(req.Header)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("proxy request failed",
			slog.String("backend", backend.Name),
			slog.String("target", target),
			slog.Any("error", err))
		Message(w, http.StatusBadGateway, "upstream service unavailable")
		return
	}
	defer resp.Body.Close()

	// Relay status and body untouched, downstream errors included.
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Warn("relay response body", slog.Any("error", err))
	}
}

// rewritePath strips the leading segment for backends mounted at root.
func rewritePath(path, strip string) string {
	if strip == "" {
		return path
	}
	rewritten := strings.TrimPrefix(path, strip)
	if rewritten == "" {
		return "/"
	}
	return rewritten
}

package host

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/parley/internal/logger"
)

// Host exposes a service as a network-addressable endpoint under
// <subdomain>.<domain>. Both operations may fail; the registry logs such
// failures and keeps its own state authoritative.
type Host interface {
	Expose(subdomain string, handler http.Handler) error
	Withdraw(subdomain string) error
}

// ErrNotExposed is returned by Withdraw when no endpoint is bound to the
// subdomain.
var ErrNotExposed = errors.New("endpoint not exposed")

// HTTPHost routes requests by Host header to the handler exposed for the
// matching subdomain of the configured base domain.
type HTTPHost struct {
	domain string
	logger logger.Logger

	mu       sync.RWMutex
	handlers map[string]http.Handler

	server *http.Server
}

// NewHTTPHost creates a host serving endpoints for subdomains of domain.
func NewHTTPHost(domain, addr string, log logger.Logger) *HTTPHost {
	h := &HTTPHost{
		domain:   domain,
		logger:   log,
		handlers: make(map[string]http.Handler),
	}
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return h
}

// Expose binds handler to <subdomain>.<domain>, replacing any prior
// binding for that subdomain.
func (h *HTTPHost) Expose(subdomain string, handler http.Handler) error {
	if subdomain == "" {
		return errors.New("empty subdomain")
	}
	h.mu.Lock()
	h.handlers[subdomain] = handler
	h.mu.Unlock()

	h.logger.Debug("endpoint exposed",
		logger.String("address", subdomain+"."+h.domain))
	return nil
}

// Withdraw removes the binding for subdomain.
func (h *HTTPHost) Withdraw(subdomain string) error {
	h.mu.Lock()
	_, ok := h.handlers[subdomain]
	delete(h.handlers, subdomain)
	h.mu.Unlock()

	if !ok {
		return ErrNotExposed
	}
	h.logger.Debug("endpoint withdrawn",
		logger.String("address", subdomain+"."+h.domain))
	return nil
}

// ServeHTTP dispatches by the request's Host header.
func (h *HTTPHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hostname := r.Host
	// Strip port if present
	if idx := strings.LastIndex(hostname, ":"); idx != -1 && !strings.Contains(hostname[idx:], "]") {
		hostname = hostname[:idx]
	}

	suffix := "." + h.domain
	if !strings.HasSuffix(hostname, suffix) {
		http.NotFound(w, r)
		return
	}
	subdomain := strings.TrimSuffix(hostname, suffix)

	h.mu.RLock()
	handler, ok := h.handlers[subdomain]
	h.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	handler.ServeHTTP(w, r)
}

// Start runs the endpoint listener (blocks until error or shutdown).
func (h *HTTPHost) Start() error {
	h.logger.Infof("service endpoint host listening on %s", h.server.Addr)
	err := h.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the endpoint listener.
func (h *HTTPHost) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

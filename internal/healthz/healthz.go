// Package healthz provides an API enabling the support of service health
// checks. A service reports sick until it calls Healthy, and afterwards for
// as long as any registered dependency check fails.
package healthz

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Check reports the health of a dependency, e.g. a database ping.
type Check func(context.Context) error

// NewHTTP creates an HTTP instance. Every check is run on each health check
// request.
func NewHTTP(checks ...Check) *HTTP {
	return &HTTP{
		mutex:   new(sync.RWMutex),
		healthy: false,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// HTTP provides an HTTP handler to correctly handle HTTP-based health checks.
type HTTP struct {
	mutex *sync.RWMutex
	// healthy indicates if the service has signalled it is ready to serve.
	healthy bool

	checks  []Check
	timeout time.Duration
}

// ServeHTTP implements the http.Handler interface.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, check := range h.checks {
		if err := check(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

// IsHealthy indicates if the service has signalled it is healthy. See
// Healthy() and Sick() to mutate the health of the HTTP instance.
func (h *HTTP) IsHealthy() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.healthy
}

// Healthy mutates the HTTP instance to communicate a status of "healthy" during
// health checks.
func (h *HTTP) Healthy() {
	h.mutex.Lock()
	h.healthy = true
	h.mutex.Unlock()
}

// Sick mutates the HTTP instance to communicate a status of "sick" during
// health checks.
func (h *HTTP) Sick() {
	h.mutex.Lock()
	h.healthy = false
	h.mutex.Unlock()
}

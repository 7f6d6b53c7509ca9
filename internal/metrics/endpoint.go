package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/time/rate"
)

// EndpointHandler serves the explorer's own Prometheus metrics at /metrics —
// the instrumentation a CLI wraps Agent.Run with, never the System Under
// Test's. No response caching: one run of an explorer is typically scraped
// once at the end, not polled under load.
type EndpointHandler struct {
	gatherer    prometheus.Gatherer
	rateLimiter *rateLimiter
}

// NewEndpointHandler wraps gatherer (normally prometheus.DefaultGatherer,
// which DefaultRegistry registers into) behind a per-client rate limiter.
func NewEndpointHandler(gatherer prometheus.Gatherer, requestsPerMinute, burst int) *EndpointHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &EndpointHandler{
		gatherer:    gatherer,
		rateLimiter: newRateLimiter(requestsPerMinute, burst),
	}
}

func (h *EndpointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.rateLimiter.allow(clientIP(r)) {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	families, err := h.gather(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("gathering metrics: %v", err), http.StatusInternalServerError)
		return
	}

	buf := &bytes.Buffer{}
	encoder := expfmt.NewEncoder(buf, expfmt.FmtText)
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			http.Error(w, fmt.Sprintf("encoding metrics: %v", err), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(buf.Bytes())
}

func (h *EndpointHandler) gather(ctx context.Context) ([]*dto.MetricFamily, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return h.gatherer.Gather()
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimiter is a per-client token bucket, one entry per distinct caller.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(requestsPerMinute, burst int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = 10
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (rl *rateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[clientID]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[clientID] = l
	}
	return l.Allow()
}

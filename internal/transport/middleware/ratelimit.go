package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/RenerPires/cfp-energy-technical-test-backend/pkg/logger"
	"golang.org/x/time/rate"
)

const bucketTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a token bucket per client IP. Idle buckets are swept by Run.
type RateLimiter struct {
	base       *transport.BaseHandler
	perSecond  rate.Limit
	burst      int
	trustProxy bool

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type RateLimitOption func(*RateLimiter)

// WithTrustedProxy keys clients on the last X-Forwarded-For hop, the address the fronting proxy appended.
// Without it the header is ignored, since any client can set it.
func WithTrustedProxy() RateLimitOption {
	return func(l *RateLimiter) { l.trustProxy = true }
}

func NewRateLimiter(base *transport.BaseHandler, perSecond float64, burst int, opts ...RateLimitOption) *RateLimiter {
	l := &RateLimiter{
		base:      base,
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[key] = b
	}
	b.seen = l.now()
	return b.lim.Allow()
}

func (l *RateLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-bucketTTL)
	removed := 0
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every minute until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, l.trustProxy)
		if !l.allow(ip) {
			logger.From(r.Context()).Warn("rate limit exceeded", "client_ip", ip, "path", transport.LogPath(r))
			w.Header().Set("Retry-After", "1")
			l.base.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}

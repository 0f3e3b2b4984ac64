package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleIdleEviction = 3 * time.Minute

// throttleSweepThreshold is the bucket count past which allow sweeps idle
// entries before admitting the request.
const throttleSweepThreshold = 1024

// ipThrottle is the per-client rate limiting middleware. Each client IP
// owns a token bucket; buckets idle past throttleIdleEviction are evicted
// once the map outgrows throttleSweepThreshold, so memory stays bounded
// without a background goroutine.
type ipThrottle struct {
	limit      rate.Limit
	burst      int
	trustProxy bool
	logger     *slog.Logger

	mu      sync.Mutex
	buckets map[string]*clientBucket
}

type clientBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

func newIPThrottle(perSecond float64, burst int, trustProxy bool, logger *slog.Logger) *ipThrottle {
	return &ipThrottle{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		trustProxy: trustProxy,
		logger:     logger,
		buckets:    make(map[string]*clientBucket),
	}
}

// allow reserves one token for the client, creating its bucket on first
// sight.
func (t *ipThrottle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if len(t.buckets) > throttleSweepThreshold {
		t.sweepLocked(now)
	}

	cb, ok := t.buckets[ip]
	if !ok {
		cb = &clientBucket{tokens: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[ip] = cb
	}
	cb.lastSeen = now
	return cb.tokens.Allow()
}

func (t *ipThrottle) sweepLocked(now time.Time) {
	for ip, cb := range t.buckets {
		if now.Sub(cb.lastSeen) > throttleIdleEviction {
			delete(t.buckets, ip)
		}
	}
}

// middleware rejects over-limit requests with 429 before they reach the
// router.
func (t *ipThrottle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, t.trustProxy)
		if !t.allow(ip) {
			t.logger.Warn("rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP from the request.
//
// When trustProxy is true, X-Real-IP is checked first, then the first entry
// of X-Forwarded-For. Header values are validated with net.ParseIP so
// non-IP strings cannot become rate limiter keys. When trustProxy is false,
// only RemoteAddr is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

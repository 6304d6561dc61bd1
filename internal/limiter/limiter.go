package limiter

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/itstheanurag/pyjudge/internal/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

type RateLimiter struct {
	globalLimiter *rate.Limiter
	perKey        *xsync.MapOf[string, *entry]
	keyRate       rate.Limit
	keyBurst      int
	now           func() time.Time
}

func NewRateLimiter(globalRPS float64, perKeyRPS float64, perKeyBurst int) *RateLimiter {
	globalBurst := int(globalRPS) * 2
	if globalBurst < 1 {
		globalBurst = 1
	}
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(globalRPS), globalBurst),
		perKey:        xsync.NewMapOf[string, *entry](),
		keyRate:       rate.Limit(perKeyRPS),
		keyBurst:      perKeyBurst,
		now:           time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	e, _ := rl.perKey.LoadOrCompute(key, func() *entry {
		return &entry{limiter: rate.NewLimiter(rl.keyRate, rl.keyBurst)}
	})
	e.lastSeen.Store(rl.now().UnixNano())
	return e.limiter
}

func (rl *RateLimiter) Allow(key string) bool {
	if !rl.globalLimiter.Allow() {
		metrics.RateLimitHits.Inc()
		return false
	}
	if !rl.getLimiter(key).Allow() {
		metrics.RateLimitHits.Inc()
		return false
	}
	return true
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ClientIP keys by the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Middleware(key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(key(r)) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sweep drops limiters idle for longer than maxIdle and returns how many
// were removed.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) int {
	cutoff := rl.now().Add(-maxIdle).UnixNano()
	removed := 0
	rl.perKey.Range(func(key string, e *entry) bool {
		if e.lastSeen.Load() < cutoff {
			rl.perKey.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// StartCleanup sweeps idle limiters every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Sweep(interval)
			case <-ctx.Done():
				return
			}
		}
	}()
}

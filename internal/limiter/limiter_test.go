package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowPerKey(t *testing.T) {
	rl := NewRateLimiter(1000, 1, 2)

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	// independent bucket
	assert.True(t, rl.Allow("u2"))
}

func TestAllowGlobal(t *testing.T) {
	rl := NewRateLimiter(1, 100, 100)
	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow("k") {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestSweep(t *testing.T) {
	rl := NewRateLimiter(1000, 1, 1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(10 * time.Minute)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.Sweep(5*time.Minute))
	_, ok := rl.perKey.Load("old")
	assert.False(t, ok)
	_, ok = rl.perKey.Load("fresh")
	assert.True(t, ok)
}

func TestMiddleware(t *testing.T) {
	rl := NewRateLimiter(1000, 1, 1)
	h := rl.Middleware(ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, do("1.2.3.4"))
	assert.Equal(t, http.StatusTooManyRequests, do("1.2.3.4"))
	assert.Equal(t, http.StatusAccepted, do("5.6.7.8"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(req))
}

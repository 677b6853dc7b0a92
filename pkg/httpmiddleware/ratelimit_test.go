package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// slow refills one token per 1000s so tests never see a refill.
const slow = 0.001

func doRequest(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RPS: slow, Burst: 5})(okHandler())

	for i := range 5 {
		w := doRequest(handler, "192.168.1.1:12345", nil)

		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, 4-i, mustAtoi(t, w.Header().Get("X-RateLimit-Remaining")))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RPS: slow, Burst: 2})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:9999", nil).Code)
	}

	w := doRequest(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Positive(t, mustAtoi(t, w.Header().Get("Retry-After")))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		first   func(h http.Handler) int
		same    func(h http.Handler) int
		another func(h http.Handler) int
	}{
		{
			name:    "remote addr",
			cfg:     RateLimitConfig{RPS: slow, Burst: 1},
			first:   func(h http.Handler) int { return doRequest(h, "10.0.0.1:1234", nil).Code },
			same:    func(h http.Handler) int { return doRequest(h, "10.0.0.1:5678", nil).Code },
			another: func(h http.Handler) int { return doRequest(h, "10.0.0.2:1234", nil).Code },
		},
		{
			name: "forwarded for",
			cfg:  RateLimitConfig{RPS: slow, Burst: 1},
			first: func(h http.Handler) int {
				return doRequest(h, "192.168.1.1:4444", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}).Code
			},
			same: func(h http.Handler) int {
				return doRequest(h, "192.168.1.2:5555", map[string]string{"X-Forwarded-For": "203.0.113.50"}).Code
			},
			another: func(h http.Handler) int {
				return doRequest(h, "192.168.1.1:4444", map[string]string{"X-Real-IP": "198.51.100.7"}).Code
			},
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{
				RPS:   slow,
				Burst: 1,
				KeyFunc: func(r *http.Request) string {
					return r.Header.Get("X-API-Key")
				},
			},
			first:   func(h http.Handler) int { return doRequest(h, "", map[string]string{"X-API-Key": "key-a"}).Code },
			same:    func(h http.Handler) int { return doRequest(h, "", map[string]string{"X-API-Key": "key-a"}).Code },
			another: func(h http.Handler) int { return doRequest(h, "", map[string]string{"X-API-Key": "key-b"}).Code },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RateLimit(tt.cfg)(okHandler())
			assert.Equal(t, http.StatusOK, tt.first(h))
			assert.Equal(t, http.StatusTooManyRequests, tt.same(h))
			assert.Equal(t, http.StatusOK, tt.another(h))
		})
	}
}

func TestRateLimit_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{RPS: slow, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	_, wait := rl.reserve("a")
	require.Zero(t, wait)
	_, wait = rl.reserve("a")
	require.Positive(t, wait)

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.buckets)

	_, wait = rl.reserve("a")
	assert.Zero(t, wait, "evicted client starts with a full bucket")
}

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-api/internal/common"
)

func newLimitHandler(t *testing.T, max int) (Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return Handler{
		Limiter: Limiter{Client: client, Prefix: "rl:checkout:"},
		Key:     common.ClientIP,
		Window:  time.Minute,
		Max:     max,
	}, mr
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	handler, _ := newLimitHandler(t, 1)
	next := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/order/checkout", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	rr1 := httptest.NewRecorder()
	next.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	next.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")

	// a different client address gets its own window
	other := httptest.NewRequest(http.MethodPost, "/order/checkout", nil)
	other.Header.Set("X-Forwarded-For", "198.51.100.4")
	rr3 := httptest.NewRecorder()
	next.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestMiddlewareFailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	var degraded error
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "rl:checkout:"},
		Key:     common.ClientIP,
		Window:  time.Minute,
		Max:     1,
		OnError: func(err error) { degraded = err },
	}
	next := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	next.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/order/checkout", nil))
	require.Equal(t, http.StatusOK, rr.Code, "requests pass through when the limiter store is down")
	require.Error(t, degraded)
}

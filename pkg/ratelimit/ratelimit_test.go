package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return mr, cache
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doLogin(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimit(t *testing.T) {
	mr, cache := setup(t)
	h := LoginRateLimit(cache, 2)(okHandler())

	assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:5001").Code)

	rec := doLogin(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many login attempts, try again later","code":"too_many_requests"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.2:5000").Code, "other clients are not affected")

	ttl := mr.TTL(keyPrefix + "10.0.0.1")
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:5003").Code)
}

func TestLoginRateLimit_DefaultLimit(t *testing.T) {
	_, cache := setup(t)
	h := LoginRateLimit(cache, 0)(okHandler())

	for i := 0; i < defaultPerMin; i++ {
		require.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doLogin(h, "10.0.0.1:1").Code)
}

func TestLoginRateLimit_NilClient(t *testing.T) {
	h := LoginRateLimit(nil, 1)(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:1").Code)
	}
}

func TestLoginRateLimit_FailOpen(t *testing.T) {
	mr, cache := setup(t)
	h := LoginRateLimit(cache, 1)(okHandler())
	mr.Close()

	assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, doLogin(h, "10.0.0.1:1").Code)
}

func TestNewRedisClient(t *testing.T) {
	mr, _ := setup(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "")
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), "not-a-url://")
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:4321"
	assert.Equal(t, "192.168.1.10", clientIP(req))

	req.RemoteAddr = "192.168.1.10"
	assert.Equal(t, "192.168.1.10", clientIP(req))
}

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHandler(t *testing.T, l *Limiter) http.Handler {
	t.Helper()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	return l.Middleware(onLimit, onError)(ok)
}

func doReq(h http.Handler, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", http.NoBody)
	req.RemoteAddr = ip + ":12345"
	h.ServeHTTP(w, req)
	return w
}

func TestNew_InvalidRate(t *testing.T) {
	_, err := New(context.Background(), Options{Rate: "five per minute"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rate")
}

func TestMemoryStore_BlocksAfterLimit(t *testing.T) {
	l, err := New(context.Background(), Options{Rate: "2-M"})
	require.NoError(t, err)
	defer l.Close()

	h := buildHandler(t, l)

	assert.Equal(t, http.StatusOK, doReq(h, "10.0.0.1").Code)
	res := doReq(h, "10.0.0.1")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "0", res.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, doReq(h, "10.0.0.1").Code)

	// other clients keep their own budget
	assert.Equal(t, http.StatusOK, doReq(h, "10.0.0.2").Code)
}

func TestRedisStore_SharesCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	l1, err := New(ctx, Options{Rate: "1-H", RedisAddr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	defer l1.Close()
	l2, err := New(ctx, Options{Rate: "1-H", RedisAddr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	defer l2.Close()

	assert.Equal(t, http.StatusOK, doReq(buildHandler(t, l1), "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, doReq(buildHandler(t, l2), "10.0.0.9").Code)

	peek, err := l2.Peek(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, peek.Reached)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = New(context.Background(), Options{Rate: "1-M", RedisAddr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

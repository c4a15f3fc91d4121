package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	internalRedis "fulfillment/internal/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIdempotentRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	router.Use(IdempotencyMiddleware(internalRedis.NewResponseCache(client), internalRedis.NewLockStore(client), log))
	router.POST("/api/porter/checkout", handler)
	router.GET("/api/porter/checkout", handler)
	return router, mr
}

func post(router http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/porter/checkout", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{"call": n})
	})

	first := post(router, "key-1")
	second := post(router, "key-1")

	if calls != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("expected replayed body %s, got %s", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header on second response")
	}
}

func TestIdempotency_DifferentKeysRunSeparately(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{})
	})

	post(router, "key-1")
	post(router, "key-2")
	post(router, "")
	post(router, "")

	if calls != 4 {
		t.Errorf("expected 4 handler runs, got %d", calls)
	}
}

func TestIdempotency_ServerErrorsAreNotCached(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusBadGateway, gin.H{"message": "Internal Server Error"})
	})

	post(router, "key-1")
	post(router, "key-1")

	if calls != 2 {
		t.Errorf("expected 5xx to be retried, handler ran %d times", calls)
	}
}

func TestIdempotency_InFlightDuplicateConflicts(t *testing.T) {
	router, mr := newIdempotentRouter(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	// Simulate the first request still holding the lock.
	mr.Set("lock:idempotency:/api/porter/checkout:key-1", "1")

	w := post(router, "key-1")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestIdempotency_IgnoresGet(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{})
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/porter/checkout", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Errorf("expected GET to bypass idempotency, got %d runs", calls)
	}
}

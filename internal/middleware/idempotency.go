package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	internalRedis "fulfillment/internal/redis"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	idempotencyLockTTL = time.Minute
)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a POST retried
// with the same Idempotency-Key, so a double-submitted checkout or verify
// neither opens a second payment session nor dispatches twice. Keys are
// scoped by route. A duplicate arriving while the first is still in
// flight gets 409.
func IdempotencyMiddleware(cache internalRedis.ResponseCacheInterface, locks internalRedis.LockStoreInterface, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := c.FullPath() + ":" + key

		cached, err := cache.Get(ctx, cacheKey)
		if err != nil {
			// Redis error - proceed without idempotency.
			log.Warn("idempotency lookup failed", "key", key, "error", err)
			c.Next()
			return
		}

		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(cached.StatusCode, "application/json", cached.Body)
			c.Abort()
			return
		}

		acquired, err := locks.Acquire(ctx, "idempotency:"+cacheKey, idempotencyLockTTL)
		if err != nil {
			log.Warn("idempotency lock failed", "key", key, "error", err)
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "request with this Idempotency-Key is already in progress"})
			return
		}
		defer func() {
			if err := locks.Release(ctx, "idempotency:"+cacheKey); err != nil {
				log.Warn("idempotency lock release failed", "key", key, "error", err)
			}
		}()

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// 5xx responses are not cached so the client can retry them.
		if status := c.Writer.Status(); status >= 200 && status < 500 {
			response := internalRedis.CachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := cache.Set(ctx, cacheKey, &response); err != nil {
				log.Warn("idempotency store failed", "key", key, "error", err)
			}
		}
	}
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}

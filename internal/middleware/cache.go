package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/config"
)

// captureWriter tees the response body (up to limit bytes) while it is
// written to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.truncated = true
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// cachedResponse is what gets stored in Redis.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// cacheStore is the subset of the Redis client the cache uses.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// ResponseCache stores successful reads in Redis for cfg.TTL.  Entries are
// keyed on a generation counter that every successful write bumps, so a
// read issued after a write has returned never sees the pre-write body,
// whichever replica served either request.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb cacheStore
	log zerolog.Logger
}

// NewResponseCache returns a cache over rdb.  With a nil client or a
// disabled config both middlewares pass requests straight through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) *ResponseCache {
	if rdb == nil || !cfg.Enabled || cfg.TTL <= 0 {
		return &ResponseCache{cfg: cfg, log: log}
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) genKey() string { return rc.cfg.Prefix + ":gen" }

// generation returns the current write generation.  ok is false when
// Redis cannot tell, in which case the request bypasses the cache.
func (rc *ResponseCache) generation(ctx context.Context) (string, bool) {
	gen, err := rc.rdb.Get(ctx, rc.genKey()).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		rc.log.Debug().Err(err).Msg("cache generation read failed")
		return "", false
	}
	return gen, true
}

func (rc *ResponseCache) key(c echo.Context, gen string) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + c.Path() + "?" + r.URL.RawQuery))
	return rc.cfg.Prefix + ":" + gen + ":" + hex.EncodeToString(sum[:])
}

// Serve answers repeated reads of the wrapped route from Redis.  Only
// complete 200 responses are stored.  Any Redis failure is a miss.
func (rc *ResponseCache) Serve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rc.rdb == nil {
			return next
		}
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, ok := rc.generation(ctx)
			if !ok {
				return next(c)
			}
			key := rc.key(c, gen)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				var cached cachedResponse
				if err := json.Unmarshal(bs, &cached); err == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(cached.Status, cached.ContentType, cached.Body)
				}
			} else if !errors.Is(err, redis.Nil) {
				rc.log.Debug().Err(err).Msg("cache read failed")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      cw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			})
			if err == nil {
				// the request may already be cancelled once the body is out
				err = rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err()
			}
			if err != nil {
				rc.log.Debug().Err(err).Msg("cache write failed")
			}
			return nil
		}
	}
}

// Invalidate bumps the generation after the wrapped write succeeds.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rc.rdb == nil {
			return next
		}
		return func(c echo.Context) error {
			err := next(c)
			if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
				ctx := context.WithoutCancel(c.Request().Context())
				if err := rc.rdb.Incr(ctx, rc.genKey()).Err(); err != nil {
					rc.log.Warn().Err(err).Msg("cache invalidation failed")
				}
			}
			return err
		}
	}
}

// Package middleware provides HTTP middleware for Arcadia.
// ratelimit.go implements a per-IP rate limiter using a fixed-window
// counter stored in Redis, so limits hold across server replicas.
// Applied to the credential endpoints (login, register, nonce, wallet login).
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimit returns middleware that limits requests per IP to maxRequests
// within the given window. Returns 429 when exceeded.
//
// The counter key is "ratelimit:<route>:<ip>"; INCR creates it atomically
// and EXPIRE starts the window on first hit. If Redis is unreachable the
// request is allowed through -- availability over strictness.
func RateLimit(rdb *redis.Client, route string, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := fmt.Sprintf("ratelimit:%s:%s", route, c.RealIP())

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request",
					slog.String("route", route),
					slog.Any("error", err),
				)
				return next(c)
			}

			if count == 1 {
				if err := rdb.Expire(ctx, key, window).Err(); err != nil {
					slog.Warn("rate limiter expire failed",
						slog.String("route", route),
						slog.Any("error", err),
					)
				}
			}

			if count > int64(maxRequests) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}

			return next(c)
		}
	}
}

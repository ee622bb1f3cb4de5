package wallet

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/emberforge/arcadia/internal/middleware"
)

// RegisterRoutes sets up the wallet-path routes on the /auth/wallet group.
// Link and unlink require an authenticated session; requireSession is the
// auth plugin's middleware.
//
// Nonce and login endpoints are rate-limited: signature verification is
// cheap but nonce issuance writes to the store on every call.
func RegisterRoutes(g *echo.Group, h *Handler, rdb *redis.Client, requireSession echo.MiddlewareFunc) {
	g.POST("/request-nonce", h.RequestNonce, middleware.RateLimit(rdb, "wallet-nonce", 10, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(rdb, "wallet-login", 10, time.Minute))
	g.POST("/link", h.Link, requireSession)
	g.POST("/unlink", h.Unlink, requireSession)
}

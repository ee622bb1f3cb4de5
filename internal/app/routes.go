package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/emberforge/arcadia/internal/plugins/auth"
	"github.com/emberforge/arcadia/internal/plugins/inventory"
	"github.com/emberforge/arcadia/internal/plugins/wallet"
	"github.com/emberforge/arcadia/internal/session"
)

// Handlers collects the plugin handlers wired up in main. RegisterRoutes
// mounts them all; this is the single place where routes are aggregated.
type Handlers struct {
	Auth      *auth.Handler
	Wallet    *wallet.Handler
	Inventory *inventory.Handler
	Validator *session.Validator
}

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each plugin's route registration function.
func (a *App) RegisterRoutes(h Handlers) {
	e := a.Echo

	// Health check endpoint for Docker health monitoring. Verifies the
	// DB pool and Redis are actually reachable, not just that the process
	// is up.
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := a.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "component": "database"})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "component": "redis"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	requireSession := auth.RequireSession(h.Validator)

	// Password path: login, register, logout, session introspection.
	authGroup := e.Group("/auth")
	auth.RegisterRoutes(authGroup, h.Auth, a.Redis)

	// Wallet path: nonce challenge, signature login, link/unlink.
	walletGroup := e.Group("/auth/wallet")
	wallet.RegisterRoutes(walletGroup, h.Wallet, a.Redis, requireSession)

	// Inventory listing for the authenticated account.
	inventoryGroup := e.Group("/inventory")
	inventory.RegisterRoutes(inventoryGroup, h.Inventory, requireSession)
}

package auth

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/emberforge/arcadia/internal/middleware"
)

// RegisterRoutes sets up the password-path routes on the /auth group.
//
// Credential endpoints are rate-limited to slow brute-force and credential
// stuffing: 10 login attempts per IP per minute, 5 registrations.
func RegisterRoutes(g *echo.Group, h *Handler, rdb *redis.Client) {
	g.GET("/login", h.Login, middleware.RateLimit(rdb, "login", 10, time.Minute))
	g.POST("/register", h.Register, middleware.RateLimit(rdb, "register", 5, time.Minute))
	g.POST("/logout", h.Logout)
	g.GET("/session", h.Session)
}

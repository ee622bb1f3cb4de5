package inventory

import "github.com/labstack/echo/v4"

// RegisterRoutes sets up the inventory routes. All endpoints require an
// authenticated session.
func RegisterRoutes(g *echo.Group, h *Handler, requireSession echo.MiddlewareFunc) {
	g.GET("", h.List, requireSession)
}

package inventory

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/plugins/auth"
)

// Handler exposes inventory endpoints.
type Handler struct {
	service Service
}

// NewHandler creates an inventory handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// List returns the authenticated account's inventory.
func (h *Handler) List(c echo.Context) error {
	identity := auth.GetIdentity(c)
	if identity == nil {
		return apperror.NewUnauthorized("You must be logged in to view your inventory!")
	}

	items, err := h.service.List(c.Request().Context(), identity.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{Items: items})
}

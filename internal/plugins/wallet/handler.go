package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/plugins/auth"
)

// Handler handles HTTP requests for wallet authentication. Handlers are
// thin: they bind the request, call the service, and render the response.
type Handler struct {
	service Service
}

// NewHandler creates a new wallet handler with the given service.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RequestNonce issues a signing challenge (POST /auth/wallet/request-nonce).
func (h *Handler) RequestNonce(c echo.Context) error {
	var req NonceRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	resp, err := h.service.RequestNonce(c.Request().Context(), req.WalletAddress)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Login authenticates with a signed challenge (POST /auth/wallet/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	token, result, err := h.service.Login(c.Request().Context(), req.WalletAddress, req.Signature)
	if err != nil {
		return err
	}

	auth.SetSessionCookie(c, token)
	return c.JSON(http.StatusOK, result)
}

// Link binds a wallet to the authenticated account (POST /auth/wallet/link).
// Requires a valid session.
func (h *Handler) Link(c echo.Context) error {
	identity := auth.GetIdentity(c)
	if identity == nil {
		return apperror.NewUnauthorized("You must be logged in to link a wallet!")
	}

	var req LinkRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if err := h.service.Link(c.Request().Context(), identity.AccountID, req.WalletAddress, req.Signature); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Wallet successfully linked to your account!",
	})
}

// Unlink removes the wallet binding (POST /auth/wallet/unlink).
// Requires a valid session.
func (h *Handler) Unlink(c echo.Context) error {
	identity := auth.GetIdentity(c)
	if identity == nil {
		return apperror.NewUnauthorized("You must be logged in to unlink a wallet!")
	}

	if err := h.service.Unlink(c.Request().Context(), identity.AccountID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Wallet successfully unlinked from your account!",
	})
}

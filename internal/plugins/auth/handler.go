package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emberforge/arcadia/internal/apperror"
)

// SessionCookieName is the HTTP cookie carrying the signed session token.
const SessionCookieName = "sessionToken"

// Handler handles HTTP requests for password authentication. Handlers are
// thin: they bind the request, call the service, and render the response.
// No business logic lives here.
type Handler struct {
	service Service
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Login authenticates with username/password (GET /auth/login).
// Credentials ride in the query string for compatibility with the game
// client; the request logger never records query strings.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Username == "" || req.Password == "" {
		return apperror.NewBadRequest("Please provide a valid username and password!")
	}

	token, result, err := h.service.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	SetSessionCookie(c, token)
	return c.JSON(http.StatusOK, result)
}

// Register creates a new account (POST /auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if req.Username == "" || req.Password == "" {
		return apperror.NewBadRequest("Please provide a valid username and password!")
	}
	if len(req.Username) < 3 || len(req.Password) < 6 {
		return apperror.NewBadRequest("Username must be at least 3 characters long and password must be at least 6 characters long!")
	}

	input := RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
	}
	if err := h.service.Register(c.Request().Context(), input); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Account successfully created!",
	})
}

// Logout invalidates the live session and clears the cookie (POST /auth/logout).
// Never fails: an absent or stale token still gets its cookie cleared.
func (h *Handler) Logout(c echo.Context) error {
	_ = h.service.Logout(c.Request().Context(), GetSessionToken(c))

	ClearSessionCookie(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "success"})
}

// Session resolves the current session (GET /auth/session).
func (h *Handler) Session(c echo.Context) error {
	info, err := h.service.CheckSession(c.Request().Context(), GetSessionToken(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// --- Cookie helpers (shared with the wallet plugin) ---

// GetSessionToken reads the session token from the cookie.
func GetSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure, and SameSite=None because the game
// frontend calls the API cross-site.
func SetSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearSessionCookie removes the session cookie by setting MaxAge to -1.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
}

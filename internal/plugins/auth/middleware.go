package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/emberforge/arcadia/internal/session"
)

// Context key for storing the resolved identity in Echo context. Other
// plugins use the exported getter below to access the authenticated
// account's information.
const contextKeyIdentity = "auth_identity"

// RequireSession returns middleware that validates the session cookie and
// injects the resolved identity into the request context. Validation runs
// the full single-session state machine, so a superseded token fails here
// with a dual_login error rather than a plain 401.
func RequireSession(validator *session.Validator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := validator.Validate(c.Request().Context(), GetSessionToken(c))
			if err != nil {
				return err
			}

			c.Set(contextKeyIdentity, identity)
			return next(c)
		}
	}
}

// GetIdentity retrieves the authenticated identity from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetIdentity(c echo.Context) *session.Identity {
	identity, ok := c.Get(contextKeyIdentity).(*session.Identity)
	if !ok {
		return nil
	}
	return identity
}

package session

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/apperror"
)

// Identity is the resolved result of a successful validation.
type Identity struct {
	AccountID string
	Username  string
	Status    account.Status
	Role      string
}

// MarkerSource reports the single trusted session marker for an account
// together with its lifecycle status. Re-read from the store on every
// request; alternative single-session strategies (token-id revocation
// lists) can be substituted here without touching the validator.
type MarkerSource interface {
	CurrentTrustedMarker(ctx context.Context, id string) (marker string, status account.Status, err error)
}

// Validator checks presented session tokens: cryptographic validity first,
// then liveness against the account's current trusted marker.
type Validator struct {
	key     *rsa.PublicKey
	markers MarkerSource
}

// NewValidator creates a validator verifying with the given public key.
func NewValidator(key *rsa.PublicKey, markers MarkerSource) *Validator {
	return &Validator{key: key, markers: markers}
}

// Validate runs the per-request state machine:
//
//	no token                     -> unauthorized
//	bad signature / expired      -> unauthorized
//	account missing              -> unauthorized
//	status not active            -> account_not_active (echoes status)
//	stored marker != token's     -> dual_login (forced logout)
//	match                        -> identity
//
// DualLogin is distinguished from plain unauthorized so a client can show
// "your session was taken over elsewhere" instead of "please log in".
func (v *Validator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized("You must be logged in!")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, apperror.NewUnauthorized("Invalid session!")
	}

	marker, status, err := v.markers.CurrentTrustedMarker(ctx, claims.AccountID)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Type == "not_found" {
			return nil, apperror.NewUnauthorized("Invalid session!")
		}
		return nil, apperror.NewInternal(fmt.Errorf("resolving trusted marker: %w", err))
	}

	if status != account.StatusActive {
		return nil, apperror.NewAccountNotActive(string(status))
	}

	if marker == "" || marker != claims.WebToken {
		return nil, apperror.NewDualLogin()
	}

	return &Identity{
		AccountID: claims.AccountID,
		Username:  claims.Username,
		Status:    status,
		Role:      claims.Role,
	}, nil
}

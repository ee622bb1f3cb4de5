package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/apperror"
)

// markerBytes is the number of random bytes in a web-token marker.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const markerBytes = 32

// Claims is the signed session token payload. JSON field names match the
// payload shape clients already consume.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id"`
	Username  string `json:"username"`
	Status    string `json:"status"`
	WebToken  string `json:"token"`
	Role      string `json:"auth"`
}

// MarkerStore persists the trusted session marker for an account.
// Implemented by the account repository.
type MarkerStore interface {
	UpdateWebToken(ctx context.Context, id, token string) error
}

// Issuer mints signed session tokens. Issuing overwrites the account's
// stored web-token, which is what invalidates every previously issued
// token for that account regardless of their own expiry.
type Issuer struct {
	key   *rsa.PrivateKey
	store MarkerStore
	ttl   time.Duration
}

// NewIssuer creates an issuer signing with the given private key.
func NewIssuer(key *rsa.PrivateKey, store MarkerStore, ttl time.Duration) *Issuer {
	return &Issuer{key: key, store: store, ttl: ttl}
}

// Issue generates a fresh web-token marker, persists it on the account, and
// returns an RS256-signed session token embedding it.
func (i *Issuer) Issue(ctx context.Context, acct *account.Account, role string) (string, error) {
	marker, err := newMarker()
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("generating session marker: %w", err))
	}

	// Single-session enforcement point: last write wins. The loser of a
	// concurrent login race discovers invalidation on its next request.
	if err := i.store.UpdateWebToken(ctx, acct.ID, marker); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("storing session marker: %w", err))
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		AccountID: acct.ID,
		Username:  acct.Username,
		Status:    string(acct.Status),
		WebToken:  marker,
		Role:      role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("signing session token: %w", err))
	}

	return signed, nil
}

// newMarker creates a cryptographically random hex-encoded marker.
func newMarker() (string, error) {
	b := make([]byte, markerBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

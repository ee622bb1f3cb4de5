package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/apperror"
)

// --- Test Keys ---

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// testSigningKey generates one RSA key pair for the whole test run.
// Key generation is slow enough that per-test generation hurts.
func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generating test key: %v", err)
		}
		testKey = key
	})
	return testKey
}

// --- Mock Marker Store ---

// mockMarkers implements both MarkerStore and MarkerSource so the same
// mock can back an Issuer and a Validator.
type mockMarkers struct {
	updateWebTokenFn       func(ctx context.Context, id, token string) error
	currentTrustedMarkerFn func(ctx context.Context, id string) (string, account.Status, error)

	// stored tracks the last marker written per account when no
	// updateWebTokenFn override is set.
	stored map[string]string
}

func (m *mockMarkers) UpdateWebToken(ctx context.Context, id, token string) error {
	if m.updateWebTokenFn != nil {
		return m.updateWebTokenFn(ctx, id, token)
	}
	if m.stored == nil {
		m.stored = make(map[string]string)
	}
	m.stored[id] = token
	return nil
}

func (m *mockMarkers) CurrentTrustedMarker(ctx context.Context, id string) (string, account.Status, error) {
	if m.currentTrustedMarkerFn != nil {
		return m.currentTrustedMarkerFn(ctx, id)
	}
	marker, ok := m.stored[id]
	if !ok {
		return "", "", apperror.NewNotFound("account not found")
	}
	return marker, account.StatusActive, nil
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func testAccount() *account.Account {
	return &account.Account{
		ID:       "acct-1",
		Username: "alice",
		Status:   account.StatusActive,
		Role:     "user",
	}
}

// --- Issue Tests ---

func TestIssue_SignsValidToken(t *testing.T) {
	key := testSigningKey(t)
	store := &mockMarkers{}
	issuer := NewIssuer(key, store, time.Hour)

	token, err := issuer.Issue(context.Background(), testAccount(), "user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil || !parsed.Valid {
		t.Fatalf("issued token does not verify: %v", err)
	}

	if claims.AccountID != "acct-1" {
		t.Errorf("expected account id acct-1, got %s", claims.AccountID)
	}
	if claims.Username != "alice" {
		t.Errorf("expected username alice, got %s", claims.Username)
	}
	if claims.Role != "user" {
		t.Errorf("expected role user, got %s", claims.Role)
	}
	if claims.WebToken == "" {
		t.Error("expected a web-token marker in the claims")
	}
}

func TestIssue_PersistsMarkerMatchingClaims(t *testing.T) {
	key := testSigningKey(t)
	store := &mockMarkers{}
	issuer := NewIssuer(key, store, time.Hour)

	token, err := issuer.Issue(context.Background(), testAccount(), "user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}); err != nil {
		t.Fatalf("parsing token: %v", err)
	}

	if store.stored["acct-1"] != claims.WebToken {
		t.Errorf("stored marker %q does not match token marker %q",
			store.stored["acct-1"], claims.WebToken)
	}
}

func TestIssue_NewMarkerEachCall(t *testing.T) {
	key := testSigningKey(t)
	store := &mockMarkers{}
	issuer := NewIssuer(key, store, time.Hour)

	first, err := issuer.Issue(context.Background(), testAccount(), "user")
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	firstMarker := store.stored["acct-1"]

	second, err := issuer.Issue(context.Background(), testAccount(), "user")
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	if first == second {
		t.Error("expected distinct tokens from consecutive issues")
	}
	if firstMarker == store.stored["acct-1"] {
		t.Error("expected a fresh marker to replace the previous one")
	}
}

func TestIssue_StoreErrorFails(t *testing.T) {
	key := testSigningKey(t)
	store := &mockMarkers{
		updateWebTokenFn: func(ctx context.Context, id, token string) error {
			return errors.New("db write error")
		},
	}
	issuer := NewIssuer(key, store, time.Hour)

	_, err := issuer.Issue(context.Background(), testAccount(), "user")
	assertAppError(t, err, 500)
}

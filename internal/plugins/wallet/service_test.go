package wallet

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/session"
)

// --- Mock Account Repository ---

// mockAccountRepo implements account.Repository for testing. It also backs
// the session issuer through UpdateWebToken.
type mockAccountRepo struct {
	createFn               func(ctx context.Context, acct *account.Account) error
	deleteFn               func(ctx context.Context, id string) error
	findByIDFn             func(ctx context.Context, id string) (*account.Account, error)
	findByUsernameFoldFn   func(ctx context.Context, username string) (*account.Account, error)
	usernameExistsFoldFn   func(ctx context.Context, username string) (bool, error)
	findByWalletFn         func(ctx context.Context, address string) (*account.Account, error)
	updateWebTokenFn       func(ctx context.Context, id, token string) error
	currentTrustedMarkerFn func(ctx context.Context, id string) (string, account.Status, error)
	setNonceFn             func(ctx context.Context, id, nonce string, expiry time.Time) error
	clearNonceFn           func(ctx context.Context, id string) error
	promoteFn              func(ctx context.Context, id, username string) error
	linkWalletFn           func(ctx context.Context, id, address string) error
	unlinkWalletFn         func(ctx context.Context, id string) error
}

func (m *mockAccountRepo) Create(ctx context.Context, acct *account.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, acct)
	}
	return nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*account.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockAccountRepo) FindByUsernameFold(ctx context.Context, username string) (*account.Account, error) {
	if m.findByUsernameFoldFn != nil {
		return m.findByUsernameFoldFn(ctx, username)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockAccountRepo) UsernameExistsFold(ctx context.Context, username string) (bool, error) {
	if m.usernameExistsFoldFn != nil {
		return m.usernameExistsFoldFn(ctx, username)
	}
	return false, nil
}

func (m *mockAccountRepo) FindByWallet(ctx context.Context, address string) (*account.Account, error) {
	if m.findByWalletFn != nil {
		return m.findByWalletFn(ctx, address)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockAccountRepo) UpdateWebToken(ctx context.Context, id, token string) error {
	if m.updateWebTokenFn != nil {
		return m.updateWebTokenFn(ctx, id, token)
	}
	return nil
}

func (m *mockAccountRepo) CurrentTrustedMarker(ctx context.Context, id string) (string, account.Status, error) {
	if m.currentTrustedMarkerFn != nil {
		return m.currentTrustedMarkerFn(ctx, id)
	}
	return "", "", apperror.NewNotFound("account not found")
}

func (m *mockAccountRepo) SetNonce(ctx context.Context, id, nonce string, expiry time.Time) error {
	if m.setNonceFn != nil {
		return m.setNonceFn(ctx, id, nonce, expiry)
	}
	return nil
}

func (m *mockAccountRepo) ClearNonce(ctx context.Context, id string) error {
	if m.clearNonceFn != nil {
		return m.clearNonceFn(ctx, id)
	}
	return nil
}

func (m *mockAccountRepo) Promote(ctx context.Context, id, username string) error {
	if m.promoteFn != nil {
		return m.promoteFn(ctx, id, username)
	}
	return nil
}

func (m *mockAccountRepo) LinkWallet(ctx context.Context, id, address string) error {
	if m.linkWalletFn != nil {
		return m.linkWalletFn(ctx, id, address)
	}
	return nil
}

func (m *mockAccountRepo) UnlinkWallet(ctx context.Context, id string) error {
	if m.unlinkWalletFn != nil {
		return m.unlinkWalletFn(ctx, id)
	}
	return nil
}

// --- Mock Profile Repository ---

type mockProfileRepo struct {
	createFn func(ctx context.Context, p *account.Profile) error
}

func (m *mockProfileRepo) Create(ctx context.Context, p *account.Profile) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

func (m *mockProfileRepo) FindByAccount(ctx context.Context, accountID string) (*account.Profile, error) {
	return nil, apperror.NewNotFound("profile not found")
}

func (m *mockProfileRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	return nil
}

// --- Mock Granter ---

type mockGranter struct {
	grantFn func(ctx context.Context, accountID string, items []ItemGrant, opts GrantOptions) error
}

func (m *mockGranter) Grant(ctx context.Context, accountID string, items []ItemGrant, opts GrantOptions) error {
	if m.grantFn != nil {
		return m.grantFn(ctx, accountID, items, opts)
	}
	return nil
}

// --- Helpers ---

var (
	serviceKeyOnce sync.Once
	serviceKey     *rsa.PrivateKey
)

func serviceSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	serviceKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generating test key: %v", err)
		}
		serviceKey = key
	})
	return serviceKey
}

func newTestWalletService(t *testing.T, repo *mockAccountRepo, profiles *mockProfileRepo, granter *mockGranter) Service {
	t.Helper()
	if profiles == nil {
		profiles = &mockProfileRepo{}
	}
	if granter == nil {
		granter = &mockGranter{}
	}
	issuer := session.NewIssuer(serviceSigningKey(t), repo, time.Hour)
	return NewService(repo, profiles, issuer, granter, 5*time.Minute)
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

func futureExpiry() *time.Time {
	t := time.Now().Add(5 * time.Minute)
	return &t
}

// --- RequestNonce Tests ---

func TestRequestNonce_EmptyAddress(t *testing.T) {
	svc := newTestWalletService(t, &mockAccountRepo{}, nil, nil)

	_, err := svc.RequestNonce(context.Background(), "")
	assertAppError(t, err, 400)
}

func TestRequestNonce_ExistingAccountGetsFreshNonce(t *testing.T) {
	var storedNonce string
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, address string) (*account.Account, error) {
			return &account.Account{ID: "acct-1", WalletAddress: address, Status: account.StatusActive}, nil
		},
		setNonceFn: func(ctx context.Context, id, nonce string, expiry time.Time) error {
			storedNonce = nonce
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	resp, err := svc.RequestNonce(context.Background(), "0xABCDEF1234567890abcdef1234567890ABCDEF12")
	if err != nil {
		t.Fatalf("RequestNonce: %v", err)
	}
	if resp.Nonce == "" || resp.Nonce != storedNonce {
		t.Errorf("expected stored nonce to match response, got %q vs %q", storedNonce, resp.Nonce)
	}
	if !strings.Contains(resp.Message, resp.Nonce) {
		t.Error("expected challenge message to embed the nonce")
	}
	if !strings.Contains(resp.Message, "0xabcdef1234567890abcdef1234567890abcdef12") {
		t.Error("expected challenge message to embed the lowercased address")
	}
}

func TestRequestNonce_UnknownWalletCreatesPlaceholder(t *testing.T) {
	var created *account.Account
	repo := &mockAccountRepo{
		createFn: func(ctx context.Context, acct *account.Account) error {
			created = acct
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	resp, err := svc.RequestNonce(context.Background(), "0xABC0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("RequestNonce: %v", err)
	}
	if created == nil {
		t.Fatal("expected a placeholder account to be created")
	}
	if created.Status != account.StatusPending {
		t.Errorf("expected pending placeholder, got %s", created.Status)
	}
	if created.WalletAddress != "0xabc0000000000000000000000000000000000001" {
		t.Errorf("expected lowercased address on placeholder, got %s", created.WalletAddress)
	}
	if created.WalletNonce != resp.Nonce {
		t.Error("expected placeholder to carry the issued nonce")
	}
	if created.Username != "" || created.PasswordHash != "" {
		t.Error("expected placeholder without credentials")
	}
}

func TestRequestNonce_ReissueOverwrites(t *testing.T) {
	var nonces []string
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, address string) (*account.Account, error) {
			return &account.Account{ID: "acct-1", WalletAddress: address, Status: account.StatusActive}, nil
		},
		setNonceFn: func(ctx context.Context, id, nonce string, expiry time.Time) error {
			nonces = append(nonces, nonce)
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.RequestNonce(context.Background(), "0xabc"); err != nil {
			t.Fatalf("RequestNonce: %v", err)
		}
	}
	if len(nonces) != 2 || nonces[0] == nonces[1] {
		t.Errorf("expected two distinct stored nonces, got %v", nonces)
	}
}

// --- Login Tests ---

func TestWalletLogin_MissingFields(t *testing.T) {
	svc := newTestWalletService(t, &mockAccountRepo{}, nil, nil)

	if _, _, err := svc.Login(context.Background(), "", "0xsig"); err == nil {
		t.Error("expected error for missing address")
	}
	_, _, err := svc.Login(context.Background(), "0xabc", "")
	assertAppError(t, err, 400)
}

func TestWalletLogin_NoAccount(t *testing.T) {
	svc := newTestWalletService(t, &mockAccountRepo{}, nil, nil)

	_, _, err := svc.Login(context.Background(), "0xabc", "0xsig")
	assertAppError(t, err, 400)
}

func TestWalletLogin_NoNonce(t *testing.T) {
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, address string) (*account.Account, error) {
			return &account.Account{ID: "acct-1", WalletAddress: address, Status: account.StatusActive}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	_, _, err := svc.Login(context.Background(), "0xabc", "0xsig")
	assertAppError(t, err, 400)
}

func TestWalletLogin_ExpiredNonce(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, address string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				WalletAddress:     address,
				WalletNonce:       "stale",
				WalletNonceExpiry: &expired,
				Status:            account.StatusActive,
			}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	_, _, err := svc.Login(context.Background(), "0xabc", "0xsig")
	assertAppError(t, err, 401)
}

func TestWalletLogin_WrongSigner(t *testing.T) {
	key, _ := newTestWallet(t)
	_, address := newTestWallet(t)

	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusActive,
			}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	_, _, err := svc.Login(context.Background(), address, signature)
	assertAppError(t, err, 401)
}

func TestWalletLogin_Success(t *testing.T) {
	key, address := newTestWallet(t)

	nonceCleared := false
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				Username:          "wallet_0xabc",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusActive,
				Role:              "user",
			}, nil
		},
		clearNonceFn: func(ctx context.Context, id string) error {
			nonceCleared = true
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	token, result, err := svc.Login(context.Background(), address, signature)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Error("expected a session token")
	}
	if result.IsNewUser {
		t.Error("expected isNewUser=false for an established account")
	}
	if result.Auth != "user" {
		t.Errorf("expected auth role user, got %s", result.Auth)
	}
	if !nonceCleared {
		t.Error("expected the nonce to be consumed")
	}
}

// A signature can only be redeemed once: after the nonce is consumed, the
// same signed payload must be rejected.
func TestWalletLogin_ReplayFailsAfterConsumption(t *testing.T) {
	key, address := newTestWallet(t)

	nonceCleared := false
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			acct := &account.Account{
				ID:            "acct-1",
				Username:      "wallet_0xabc",
				WalletAddress: addr,
				Status:        account.StatusActive,
			}
			if !nonceCleared {
				acct.WalletNonce = "nonce-1"
				acct.WalletNonceExpiry = futureExpiry()
			}
			return acct, nil
		},
		clearNonceFn: func(ctx context.Context, id string) error {
			nonceCleared = true
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	if _, _, err := svc.Login(context.Background(), address, signature); err != nil {
		t.Fatalf("first login: %v", err)
	}

	_, _, err := svc.Login(context.Background(), address, signature)
	assertAppError(t, err, 400)
}

func TestWalletLogin_ProvisionsPendingPlaceholder(t *testing.T) {
	key, address := newTestWallet(t)

	var promotedUsername string
	var profileCreated *account.Profile
	var grantedItems []ItemGrant
	var grantOpts GrantOptions

	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusPending,
			}, nil
		},
		promoteFn: func(ctx context.Context, id, username string) error {
			promotedUsername = username
			return nil
		},
	}
	profiles := &mockProfileRepo{
		createFn: func(ctx context.Context, p *account.Profile) error {
			profileCreated = p
			return nil
		},
	}
	granter := &mockGranter{
		grantFn: func(ctx context.Context, accountID string, items []ItemGrant, opts GrantOptions) error {
			grantedItems = items
			grantOpts = opts
			return nil
		},
	}
	svc := newTestWalletService(t, repo, profiles, granter)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	token, result, err := svc.Login(context.Background(), address, signature)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Error("expected a session token")
	}
	if !result.IsNewUser {
		t.Error("expected isNewUser=true on first verified login")
	}

	wantUsername := "wallet_" + address[:10]
	if promotedUsername != wantUsername {
		t.Errorf("expected synthesized username %s, got %s", wantUsername, promotedUsername)
	}
	if profileCreated == nil || profileCreated.AccountID != "acct-1" {
		t.Error("expected a default profile for the provisioned account")
	}
	if len(grantedItems) == 0 {
		t.Error("expected the starter bundle to be granted")
	}
	if !grantOpts.Mintable {
		t.Error("expected starter items to be mintable")
	}
}

func TestWalletLogin_UsernameCollisionGetsSuffix(t *testing.T) {
	key, address := newTestWallet(t)

	var promotedUsername string
	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusPending,
			}, nil
		},
		usernameExistsFoldFn: func(ctx context.Context, username string) (bool, error) {
			return username == "wallet_"+address[:10], nil
		},
		promoteFn: func(ctx context.Context, id, username string) error {
			promotedUsername = username
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	if _, _, err := svc.Login(context.Background(), address, signature); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if want := "wallet_" + address[:10] + "_1"; promotedUsername != want {
		t.Errorf("expected suffixed username %s, got %s", want, promotedUsername)
	}
}

func TestWalletLogin_GrantFailureDoesNotBlockLogin(t *testing.T) {
	key, address := newTestWallet(t)

	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusPending,
			}, nil
		},
	}
	granter := &mockGranter{
		grantFn: func(ctx context.Context, accountID string, items []ItemGrant, opts GrantOptions) error {
			return errors.New("inventory unavailable")
		},
	}
	svc := newTestWalletService(t, repo, nil, granter)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	token, result, err := svc.Login(context.Background(), address, signature)
	if err != nil {
		t.Fatalf("expected login to succeed despite grant failure: %v", err)
	}
	if token == "" || !result.IsNewUser {
		t.Error("expected a provisioned session despite grant failure")
	}
}

func TestWalletLogin_BannedAccount(t *testing.T) {
	key, address := newTestWallet(t)

	repo := &mockAccountRepo{
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "acct-1",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusBanned,
			}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	_, _, err := svc.Login(context.Background(), address, signature)
	assertAppError(t, err, 401)
}

// --- Link Tests ---

func TestLink_AccountAlreadyHasWallet(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, WalletAddress: "0xexisting", Status: account.StatusActive}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	err := svc.Link(context.Background(), "acct-1", "0xabc", "0xsig")
	assertAppError(t, err, 409)
}

func TestLink_NoNonceRequested(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, Username: "alice", PasswordHash: "hash", Status: account.StatusActive}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	err := svc.Link(context.Background(), "acct-1", "0xabc", "0xsig")
	assertAppError(t, err, 400)
}

func TestLink_WalletOwnedByRealAccount(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, Username: "alice", PasswordHash: "hash", Status: account.StatusActive}, nil
		},
		findByWalletFn: func(ctx context.Context, address string) (*account.Account, error) {
			return &account.Account{ID: "acct-other", WalletAddress: address, Status: account.StatusActive}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	err := svc.Link(context.Background(), "acct-1", "0xabc", "0xsig")
	assertAppError(t, err, 409)
}

func TestLink_Success(t *testing.T) {
	key, address := newTestWallet(t)

	var deletedID, linkedAddress string
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, Username: "alice", PasswordHash: "hash", Status: account.StatusActive}, nil
		},
		findByWalletFn: func(ctx context.Context, addr string) (*account.Account, error) {
			return &account.Account{
				ID:                "placeholder-1",
				WalletAddress:     addr,
				WalletNonce:       "nonce-1",
				WalletNonceExpiry: futureExpiry(),
				Status:            account.StatusPending,
			}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
		linkWalletFn: func(ctx context.Context, id, addr string) error {
			linkedAddress = addr
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	signature := signMessage(t, key, ChallengeMessage("nonce-1", address))
	if err := svc.Link(context.Background(), "acct-1", address, signature); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if deletedID != "placeholder-1" {
		t.Errorf("expected the placeholder to be deleted, got %q", deletedID)
	}
	if linkedAddress != address {
		t.Errorf("expected %s linked, got %s", address, linkedAddress)
	}
}

// --- Unlink Tests ---

func TestUnlink_NoWalletLinked(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, Username: "alice", PasswordHash: "hash", Status: account.StatusActive}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	err := svc.Unlink(context.Background(), "acct-1")
	assertAppError(t, err, 400)
}

func TestUnlink_NoPasswordSet(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, Username: "wallet_0xabc", WalletAddress: "0xabc", Status: account.StatusActive}, nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	err := svc.Unlink(context.Background(), "acct-1")
	assertAppError(t, err, 409)
}

func TestUnlink_Success(t *testing.T) {
	unlinked := false
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{
				ID:            id,
				Username:      "alice",
				PasswordHash:  "hash",
				WalletAddress: "0xabc",
				Status:        account.StatusActive,
			}, nil
		},
		unlinkWalletFn: func(ctx context.Context, id string) error {
			unlinked = true
			return nil
		},
	}
	svc := newTestWalletService(t, repo, nil, nil)

	if err := svc.Unlink(context.Background(), "acct-1"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if !unlinked {
		t.Error("expected the wallet binding to be removed")
	}
}

package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/session"
)

// nonceBytes is the number of random bytes in a challenge nonce.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const nonceBytes = 32

// usernamePrefix and usernameAddressLen shape the synthesized username for
// auto-registered wallet accounts: "wallet_" plus the first 10 characters
// of the address ("0x" included).
const (
	usernamePrefix     = "wallet_"
	usernameAddressLen = 10

	// maxUsernameAttempts bounds the collision-suffix loop.
	maxUsernameAttempts = 100
)

// Service defines the business logic contract for wallet authentication.
type Service interface {
	RequestNonce(ctx context.Context, walletAddress string) (*NonceResponse, error)
	Login(ctx context.Context, walletAddress, signature string) (token string, result *LoginResult, err error)
	Link(ctx context.Context, accountID, walletAddress, signature string) error
	Unlink(ctx context.Context, accountID string) error
}

// service implements Service on top of the account store and the shared
// session issuer.
type service struct {
	accounts account.Repository
	profiles account.ProfileRepository
	issuer   *session.Issuer
	granter  Granter
	nonceTTL time.Duration
}

// NewService creates a new wallet auth service with the given dependencies.
func NewService(accounts account.Repository, profiles account.ProfileRepository, issuer *session.Issuer, granter Granter, nonceTTL time.Duration) Service {
	return &service{
		accounts: accounts,
		profiles: profiles,
		issuer:   issuer,
		granter:  granter,
		nonceTTL: nonceTTL,
	}
}

// RequestNonce issues a fresh challenge for a wallet address, overwriting
// any outstanding one (a concurrent second request silently invalidates the
// first caller's challenge -- last write wins). If no account holds this
// address yet, a pending placeholder is created just to carry the nonce.
func (s *service) RequestNonce(ctx context.Context, walletAddress string) (*NonceResponse, error) {
	if walletAddress == "" {
		return nil, apperror.NewBadRequest("Wallet address is required!")
	}
	address := strings.ToLower(walletAddress)

	nonce, err := newNonce()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating nonce: %w", err))
	}
	expiry := time.Now().Add(s.nonceTTL)

	acct, err := s.accounts.FindByWallet(ctx, address)
	switch {
	case err == nil:
		if err := s.accounts.SetNonce(ctx, acct.ID, nonce, expiry); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("storing nonce: %w", err))
		}
	case isNotFound(err):
		placeholder := &account.Account{
			WalletAddress:     address,
			WalletNonce:       nonce,
			WalletNonceExpiry: &expiry,
			Status:            account.StatusPending,
		}
		if err := s.accounts.Create(ctx, placeholder); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("creating placeholder account: %w", err))
		}
	default:
		return nil, apperror.NewInternal(fmt.Errorf("finding account by wallet: %w", err))
	}

	return &NonceResponse{
		Nonce:   nonce,
		Message: ChallengeMessage(nonce, address),
	}, nil
}

// Login verifies a signed challenge and issues a session. First successful
// login for a pending placeholder provisions the account: synthesized
// username, active status, profile, and the starter item bundle.
func (s *service) Login(ctx context.Context, walletAddress, signature string) (string, *LoginResult, error) {
	if walletAddress == "" || signature == "" {
		return "", nil, apperror.NewBadRequest("Wallet address and signature are required!")
	}
	address := strings.ToLower(walletAddress)

	acct, err := s.accounts.FindByWallet(ctx, address)
	if err != nil {
		if isNotFound(err) {
			return "", nil, apperror.NewBadRequest("Please request a nonce first!")
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("finding account by wallet: %w", err))
	}

	if err := s.checkChallenge(acct); err != nil {
		return "", nil, err
	}

	if err := VerifySignature(ChallengeMessage(acct.WalletNonce, address), signature, address); err != nil {
		return "", nil, err
	}

	// The nonce is single-use: consume it before anything else so a replay
	// of the same signature fails even if a later step errors out.
	if err := s.accounts.ClearNonce(ctx, acct.ID); err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("clearing nonce: %w", err))
	}

	isNewUser := false
	if acct.Status == account.StatusPending {
		if err := s.provision(ctx, acct); err != nil {
			return "", nil, err
		}
		isNewUser = true
	}

	if acct.Status != account.StatusActive {
		return "", nil, apperror.NewAccountNotActive(string(acct.Status))
	}

	token, err := s.issuer.Issue(ctx, acct, acct.Role)
	if err != nil {
		return "", nil, err
	}

	slog.Info("wallet login",
		slog.String("account_id", acct.ID),
		slog.String("wallet", address),
		slog.Bool("is_new_user", isNewUser),
	)

	return token, &LoginResult{Auth: acct.Role, IsNewUser: isNewUser}, nil
}

// Link binds a wallet to the authenticated account. The nonce was requested
// beforehand via RequestNonce and lives on a pending placeholder; after
// verification the placeholder is deleted and the address moves onto the
// real account.
func (s *service) Link(ctx context.Context, accountID, walletAddress, signature string) error {
	if walletAddress == "" || signature == "" {
		return apperror.NewBadRequest("Wallet address and signature are required!")
	}
	address := strings.ToLower(walletAddress)

	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return apperror.NewNotFound("Account not found!")
		}
		return apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}
	if acct.HasWallet() {
		return apperror.NewConflict("A wallet is already linked to this account. Unlink it first!")
	}

	holder, err := s.accounts.FindByWallet(ctx, address)
	if err != nil {
		if isNotFound(err) {
			return apperror.NewBadRequest("Please request a nonce first!")
		}
		return apperror.NewInternal(fmt.Errorf("finding account by wallet: %w", err))
	}

	// Only a pending placeholder may hold the address; a promoted account
	// owning this wallet is a real conflict.
	if holder.Status != account.StatusPending {
		return apperror.NewConflict("This wallet is already linked to another account!")
	}

	if err := s.checkChallenge(holder); err != nil {
		return err
	}

	if err := VerifySignature(ChallengeMessage(holder.WalletNonce, address), signature, address); err != nil {
		return err
	}

	// Delete the placeholder first: the address is unique across accounts
	// and must be free before it can bind to the authenticated account.
	if err := s.accounts.Delete(ctx, holder.ID); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting placeholder account: %w", err))
	}
	if err := s.accounts.LinkWallet(ctx, acct.ID, address); err != nil {
		return apperror.NewInternal(fmt.Errorf("linking wallet: %w", err))
	}

	slog.Info("wallet linked",
		slog.String("account_id", acct.ID),
		slog.String("wallet", address),
	)

	return nil
}

// Unlink removes the wallet binding from the authenticated account. The
// account must keep a usable credential, so a missing password blocks the
// unlink.
func (s *service) Unlink(ctx context.Context, accountID string) error {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return apperror.NewNotFound("Account not found!")
		}
		return apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}

	if !acct.HasWallet() {
		return apperror.NewBadRequest("No wallet is linked to this account!")
	}
	if !acct.HasPassword() {
		return apperror.NewConflict("Cannot unlink wallet: Please set a password first to avoid losing access to your account!")
	}

	if err := s.accounts.UnlinkWallet(ctx, acct.ID); err != nil {
		return apperror.NewInternal(fmt.Errorf("unlinking wallet: %w", err))
	}

	slog.Info("wallet unlinked",
		slog.String("account_id", acct.ID),
		slog.String("wallet", acct.WalletAddress),
	)

	return nil
}

// checkChallenge rejects a missing or expired challenge. Expiry is checked
// lazily here, before the signature is ever inspected; nothing sweeps
// nonces in the background.
func (s *service) checkChallenge(acct *account.Account) error {
	if acct.WalletNonce == "" || acct.WalletNonceExpiry == nil {
		return apperror.NewBadRequest("Please request a nonce first!")
	}
	if acct.NonceExpired(time.Now()) {
		return apperror.NewUnauthorized("Nonce has expired. Please request a new one!")
	}
	return nil
}

// provision turns a pending placeholder into an active account on its first
// verified login: unique synthesized username, profile with placeholder
// names, starter item bundle. Mutates acct to match the stored state.
func (s *service) provision(ctx context.Context, acct *account.Account) error {
	username, err := s.uniqueUsername(ctx, acct.WalletAddress)
	if err != nil {
		return err
	}

	if err := s.accounts.Promote(ctx, acct.ID, username); err != nil {
		return apperror.NewInternal(fmt.Errorf("promoting account: %w", err))
	}
	acct.Username = username
	acct.Status = account.StatusActive
	acct.WebToken = ""

	profile := &account.Profile{
		AccountID: acct.ID,
		Firstname: "Wallet",
		Lastname:  "User",
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return apperror.NewInternal(fmt.Errorf("creating profile: %w", err))
	}

	// Grant failure must never block login completion: log and move on.
	if err := s.granter.Grant(ctx, acct.ID, starterBundle, GrantOptions{
		Mintable: true,
		Reason:   starterBundleReason,
	}); err != nil {
		slog.Error("failed to grant starter items",
			slog.String("account_id", acct.ID),
			slog.String("username", username),
			slog.Any("error", err),
		)
	} else {
		slog.Info("starter items granted",
			slog.String("account_id", acct.ID),
			slog.String("username", username),
		)
	}

	return nil
}

// uniqueUsername synthesizes "wallet_<addr[:10]>" and appends an
// incrementing counter until the name is free, checked case-insensitively.
func (s *service) uniqueUsername(ctx context.Context, address string) (string, error) {
	short := address
	if len(short) > usernameAddressLen {
		short = short[:usernameAddressLen]
	}

	base := usernamePrefix + short
	candidate := base
	for counter := 1; counter <= maxUsernameAttempts; counter++ {
		exists, err := s.accounts.UsernameExistsFold(ctx, candidate)
		if err != nil {
			return "", apperror.NewInternal(fmt.Errorf("checking username: %w", err))
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, counter)
	}

	return "", apperror.NewConflict("Could not allocate a username for this wallet. Please contact support.")
}

// newNonce creates a cryptographically random hex-encoded challenge value.
func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// isNotFound reports whether err is an apperror with the not_found type.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Type == "not_found"
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/sanitize"
	"github.com/emberforge/arcadia/internal/session"
)

// bcryptCost is the work factor for password hashes. A fresh random salt is
// generated by bcrypt every time the password field changes.
const bcryptCost = 10

// Service defines the business logic contract for password authentication.
// Handlers call these methods -- they never touch the repository directly.
type Service interface {
	Register(ctx context.Context, input RegisterInput) error
	Login(ctx context.Context, username, password string) (token string, result *LoginResult, err error)
	Logout(ctx context.Context, token string) error
	CheckSession(ctx context.Context, token string) (*SessionInfo, error)
}

// service implements Service with bcrypt hashing and RS256 session tokens.
type service struct {
	accounts  account.Repository
	profiles  account.ProfileRepository
	issuer    *session.Issuer
	validator *session.Validator
}

// NewService creates a new auth service with the given dependencies.
func NewService(accounts account.Repository, profiles account.ProfileRepository, issuer *session.Issuer, validator *session.Validator) Service {
	return &service{
		accounts:  accounts,
		profiles:  profiles,
		issuer:    issuer,
		validator: validator,
	}
}

// Register creates a new account plus its profile. The username-collision
// check is case-insensitive: two usernames differing only by case would be
// indistinguishable to the login lookup, so they are rejected up front.
func (s *service) Register(ctx context.Context, input RegisterInput) error {
	username := strings.TrimSpace(input.Username)

	exists, err := s.accounts.UsernameExistsFold(ctx, username)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("checking username: %w", err))
	}
	if exists {
		return apperror.NewConflict("This username is already taken!")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	acct := &account.Account{
		Username:     username,
		PasswordHash: string(hash),
		Status:       account.StatusActive,
		Role:         "user",
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return apperror.NewInternal(fmt.Errorf("creating account: %w", err))
	}

	// Display fields come back verbatim from the session endpoint, so any
	// markup is stripped before storage.
	profile := &account.Profile{
		AccountID: acct.ID,
		Email:     strings.TrimSpace(input.Email),
		Firstname: sanitize.Text(input.Firstname),
		Lastname:  sanitize.Text(input.Lastname),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// Roll back so no account without a profile survives registration.
		if delErr := s.accounts.Delete(ctx, acct.ID); delErr != nil {
			slog.Error("rollback failed after profile error",
				slog.String("account_id", acct.ID),
				slog.Any("error", delErr),
			)
		}
		return apperror.NewInternal(fmt.Errorf("creating profile: %w", err))
	}

	slog.Info("account registered",
		slog.String("account_id", acct.ID),
		slog.String("username", acct.Username),
	)

	return nil
}

// Login authenticates by username and password. On success it issues a new
// session token, which invalidates any previously issued token for the
// account (single active session).
func (s *service) Login(ctx context.Context, username, password string) (string, *LoginResult, error) {
	acct, err := s.accounts.FindByUsernameFold(ctx, username)
	if err != nil {
		// Don't reveal whether the username exists -- use a generic message.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Type == "not_found" {
			return "", nil, apperror.NewUnauthorized("Username/Password does not match! Please try again using the correct credentials!")
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}

	if !acct.HasPassword() ||
		bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return "", nil, apperror.NewUnauthorized("Username/Password does not match! Please try again using the correct credentials!")
	}

	if acct.Status != account.StatusActive {
		return "", nil, apperror.NewAccountNotActive(string(acct.Status))
	}

	token, err := s.issuer.Issue(ctx, acct, acct.Role)
	if err != nil {
		return "", nil, err
	}

	slog.Info("account logged in",
		slog.String("account_id", acct.ID),
		slog.String("username", acct.Username),
	)

	return token, &LoginResult{Auth: acct.Role}, nil
}

// Logout clears the stored session marker when the presented token is the
// live one, invalidating it server-side. A stale or invalid token is
// ignored -- the cookie is cleared regardless, and a superseded token must
// not be allowed to kill the newer session.
func (s *service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	identity, err := s.validator.Validate(ctx, token)
	if err != nil {
		return nil
	}

	if err := s.accounts.UpdateWebToken(ctx, identity.AccountID, ""); err != nil {
		slog.Warn("failed to clear session marker on logout",
			slog.String("account_id", identity.AccountID),
			slog.Any("error", err),
		)
	}
	return nil
}

// CheckSession validates the presented token and resolves the identity plus
// profile display fields. A missing profile is tolerated, not fatal.
func (s *service) CheckSession(ctx context.Context, token string) (*SessionInfo, error) {
	identity, err := s.validator.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	info := &SessionInfo{
		Auth:      identity.Role,
		AccountID: identity.AccountID,
		Username:  identity.Username,
		Status:    string(identity.Status),
	}

	profile, err := s.profiles.FindByAccount(ctx, identity.AccountID)
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Type != "not_found" {
			return nil, apperror.NewInternal(fmt.Errorf("resolving profile: %w", err))
		}
		// Wallet accounts provisioned before profiles existed, or a rolled
		// back create: display fields stay empty.
		return info, nil
	}

	info.Firstname = profile.Firstname
	info.Lastname = profile.Lastname
	info.ProfilePicture = profile.ProfilePicture

	return info, nil
}

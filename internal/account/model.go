// Package account is the credential store for Arcadia. It owns the Account
// and Profile models and their MariaDB repositories. Every durable piece of
// authentication state -- password hashes, wallet bindings, challenge nonces,
// and the single trusted session marker -- lives here.
package account

import (
	"fmt"
	"time"
)

// Status is the closed set of account lifecycle states. The store compares
// these by equality; anything but StatusActive blocks login.
type Status string

const (
	// StatusPending marks a wallet-only placeholder created to hold a
	// challenge nonce before any signature has been verified. Promoted to
	// active on first successful wallet login, never before.
	StatusPending Status = "pending"

	// StatusActive is the only state that can hold a live session.
	StatusActive Status = "active"

	StatusBanned    Status = "banned"
	StatusSuspended Status = "suspended"
)

// ParseStatus validates a raw status string from storage.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusActive, StatusBanned, StatusSuspended:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown account status %q", s)
}

// Account represents one identity: a password account, a wallet account, or
// both after linking. Empty string means "not set" for the nullable string
// fields; the repository maps them to SQL NULL where uniqueness is sparse.
type Account struct {
	ID string `json:"id"`

	// Username is unique with case-insensitive lookup. Empty for pending
	// wallet placeholders that have not been promoted yet.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash. Empty for wallet-only accounts.
	PasswordHash string `json:"-"`

	// GameID is the 10-digit player number assigned at creation.
	GameID string `json:"game_id"`

	// WalletAddress is lowercase-normalized and unique when present.
	WalletAddress string `json:"wallet_address,omitempty"`

	// WalletNonce and WalletNonceExpiry hold the outstanding challenge.
	// Cleared the moment a signature verifies against them.
	WalletNonce       string     `json:"-"`
	WalletNonceExpiry *time.Time `json:"-"`

	// WebToken is the single currently-trusted session marker. Empty means
	// no active session. Overwriting it invalidates every token issued
	// before, even ones that are still cryptographically valid.
	WebToken string `json:"-"`

	Status       Status `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`

	// Role is "user" for players; staff roles share the same table.
	Role string `json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasWallet reports whether a wallet address is bound to this account.
func (a *Account) HasWallet() bool {
	return a.WalletAddress != ""
}

// HasPassword reports whether the account has a usable password credential.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// NonceExpired reports whether the outstanding challenge is missing or past
// its expiry. Expiry is checked lazily here -- nothing sweeps nonces.
func (a *Account) NonceExpired(now time.Time) bool {
	return a.WalletNonce == "" || a.WalletNonceExpiry == nil || now.After(*a.WalletNonceExpiry)
}

// Profile holds display fields, 1:1 with an Account. Created at registration
// or wallet provisioning and deleted if account creation is rolled back.
type Profile struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	Email          string    `json:"email,omitempty"`
	Firstname      string    `json:"firstname"`
	Lastname       string    `json:"lastname"`
	ProfilePicture string    `json:"profilepicture"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

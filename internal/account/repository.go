package account

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/emberforge/arcadia/internal/apperror"
)

// Repository defines the data access contract for accounts. All SQL lives
// in the concrete implementation -- no SQL leaks out.
type Repository interface {
	Create(ctx context.Context, acct *Account) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByUsernameFold performs a case-insensitive exact-match lookup.
	// Ties (two accounts differing only by case) are prevented at
	// registration by UsernameExistsFold.
	FindByUsernameFold(ctx context.Context, username string) (*Account, error)
	UsernameExistsFold(ctx context.Context, username string) (bool, error)

	FindByWallet(ctx context.Context, address string) (*Account, error)

	// UpdateWebToken overwrites the trusted session marker. This is the
	// single-active-session enforcement point.
	UpdateWebToken(ctx context.Context, id, token string) error

	// CurrentTrustedMarker re-reads the stored marker and status for an
	// account. The session validator calls this on every request.
	CurrentTrustedMarker(ctx context.Context, id string) (marker string, status Status, err error)

	SetNonce(ctx context.Context, id, nonce string, expiry time.Time) error
	ClearNonce(ctx context.Context, id string) error

	// Promote transitions a pending wallet placeholder to an active account
	// with its synthesized username, clearing any stale session marker.
	Promote(ctx context.Context, id, username string) error

	LinkWallet(ctx context.Context, id, address string) error
	UnlinkWallet(ctx context.Context, id string) error
}

// ProfileRepository defines data access for display profiles.
type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	FindByAccount(ctx context.Context, accountID string) (*Profile, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

const accountColumns = `id, username, password_hash, game_id, wallet_address,
	wallet_nonce, wallet_nonce_expiry, web_token, status, status_reason, role,
	created_at, updated_at`

// repository implements Repository with hand-written MariaDB queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates an account repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Create inserts a new account row. Generates a UUID when the ID is unset
// and assigns a unique 10-digit game ID.
func (r *repository) Create(ctx context.Context, acct *Account) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.Role == "" {
		acct.Role = "user"
	}
	if acct.GameID == "" {
		gameID, err := r.uniqueGameID(ctx)
		if err != nil {
			return err
		}
		acct.GameID = gameID
	}

	query := `INSERT INTO accounts
	          (id, username, password_hash, game_id, wallet_address,
	           wallet_nonce, wallet_nonce_expiry, web_token, status, status_reason, role)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		acct.ID,
		nullable(acct.Username),
		nullable(acct.PasswordHash),
		acct.GameID,
		nullable(acct.WalletAddress),
		nullable(acct.WalletNonce),
		acct.WalletNonceExpiry,
		acct.WebToken,
		string(acct.Status),
		acct.StatusReason,
		acct.Role,
	)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}

	return nil
}

// Delete removes an account row. Used for registration rollback and for
// discarding placeholder accounts after wallet linking.
func (r *repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}

// FindByID retrieves an account by its UUID.
// Returns apperror.NotFound if no account exists with this ID.
func (r *repository) FindByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByUsernameFold retrieves an account by username, case-insensitively.
func (r *repository) FindByUsernameFold(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER(?)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// UsernameExistsFold returns true if any account holds this username,
// ignoring case. Used during registration and wallet provisioning.
func (r *repository) UsernameExistsFold(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(username) = LOWER(?))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking username existence: %w", err)
	}
	return exists, nil
}

// FindByWallet retrieves an account by its lowercase wallet address.
func (r *repository) FindByWallet(ctx context.Context, address string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE wallet_address = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, address))
}

// UpdateWebToken overwrites the stored session marker. Last write wins:
// two concurrent logins leave only the most recent token usable, which is
// exactly the single-session invariant.
func (r *repository) UpdateWebToken(ctx context.Context, id, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET web_token = ? WHERE id = ?`, token, id)
	if err != nil {
		return fmt.Errorf("updating web token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and an unchanged value;
		// only the missing row is an error.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking account existence: %w", err)
		}
		if !exists {
			return apperror.NewNotFound("account not found")
		}
	}
	return nil
}

// CurrentTrustedMarker re-reads the stored marker and lifecycle status.
func (r *repository) CurrentTrustedMarker(ctx context.Context, id string) (string, Status, error) {
	var marker, rawStatus string
	err := r.db.QueryRowContext(ctx,
		`SELECT web_token, status FROM accounts WHERE id = ?`, id).Scan(&marker, &rawStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", apperror.NewNotFound("account not found")
	}
	if err != nil {
		return "", "", fmt.Errorf("querying trusted marker: %w", err)
	}

	status, err := ParseStatus(rawStatus)
	if err != nil {
		return "", "", fmt.Errorf("account %s: %w", id, err)
	}
	return marker, status, nil
}

// SetNonce stores a fresh challenge, overwriting any outstanding one.
func (r *repository) SetNonce(ctx context.Context, id, nonce string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET wallet_nonce = ?, wallet_nonce_expiry = ? WHERE id = ?`,
		nonce, expiry, id)
	if err != nil {
		return fmt.Errorf("setting nonce: %w", err)
	}
	return nil
}

// ClearNonce consumes the outstanding challenge.
func (r *repository) ClearNonce(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET wallet_nonce = NULL, wallet_nonce_expiry = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clearing nonce: %w", err)
	}
	return nil
}

// Promote activates a pending wallet placeholder.
func (r *repository) Promote(ctx context.Context, id, username string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET username = ?, status = ?, status_reason = '', web_token = ''
		 WHERE id = ? AND status = ?`,
		username, string(StatusActive), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("promoting account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NewNotFound("pending account not found")
	}
	return nil
}

// LinkWallet binds a wallet address to the account.
func (r *repository) LinkWallet(ctx context.Context, id, address string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET wallet_address = ? WHERE id = ?`, address, id)
	if err != nil {
		return fmt.Errorf("linking wallet: %w", err)
	}
	return nil
}

// UnlinkWallet clears every wallet field on the account.
func (r *repository) UnlinkWallet(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET wallet_address = NULL, wallet_nonce = NULL,
		 wallet_nonce_expiry = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("unlinking wallet: %w", err)
	}
	return nil
}

// uniqueGameID draws random 10-digit player numbers until one is free.
func (r *repository) uniqueGameID(ctx context.Context) (string, error) {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000))
		if err != nil {
			return "", fmt.Errorf("generating game id: %w", err)
		}
		gameID := fmt.Sprintf("%d", n.Int64()+1_000_000_000)

		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE game_id = ?)`, gameID).Scan(&exists); err != nil {
			return "", fmt.Errorf("checking game id: %w", err)
		}
		if !exists {
			return gameID, nil
		}
	}
	return "", fmt.Errorf("exhausted %d attempts generating a unique game id", maxAttempts)
}

// scanOne maps a single account row, translating sql.ErrNoRows to NotFound.
func (r *repository) scanOne(row *sql.Row) (*Account, error) {
	acct := &Account{}
	var username, passwordHash, walletAddress, walletNonce sql.NullString
	var nonceExpiry sql.NullTime
	var rawStatus string

	err := row.Scan(
		&acct.ID,
		&username,
		&passwordHash,
		&acct.GameID,
		&walletAddress,
		&walletNonce,
		&nonceExpiry,
		&acct.WebToken,
		&rawStatus,
		&acct.StatusReason,
		&acct.Role,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account row: %w", err)
	}

	acct.Username = username.String
	acct.PasswordHash = passwordHash.String
	acct.WalletAddress = walletAddress.String
	acct.WalletNonce = walletNonce.String
	if nonceExpiry.Valid {
		t := nonceExpiry.Time
		acct.WalletNonceExpiry = &t
	}

	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", acct.ID, err)
	}
	acct.Status = status

	return acct, nil
}

// nullable maps an empty string to SQL NULL so sparse unique indexes
// (username, wallet_address) allow any number of absent values.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

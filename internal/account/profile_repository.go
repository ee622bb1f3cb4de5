package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/emberforge/arcadia/internal/apperror"
)

// profileRepository implements ProfileRepository with MariaDB queries.
type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a profile repository backed by the given pool.
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create inserts a new profile row, generating a UUID when unset.
func (r *profileRepository) Create(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `INSERT INTO profiles (id, account_id, email, firstname, lastname, profile_picture)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.AccountID, p.Email, p.Firstname, p.Lastname, p.ProfilePicture)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// FindByAccount retrieves the profile owned by an account.
// Returns apperror.NotFound when the account has no profile; callers on the
// session path tolerate that and fall back to empty display fields.
func (r *profileRepository) FindByAccount(ctx context.Context, accountID string) (*Profile, error) {
	query := `SELECT id, account_id, email, firstname, lastname, profile_picture, created_at, updated_at
	          FROM profiles WHERE account_id = ?`

	p := &Profile{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&p.ID, &p.AccountID, &p.Email, &p.Firstname, &p.Lastname, &p.ProfilePicture,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// DeleteByAccount removes the profile owned by an account.
func (r *profileRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	return nil
}

package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberforge/arcadia/internal/apperror"
)

// Repository defines the data access contract for inventory and catalog
// operations. All SQL lives in the concrete implementation.
type Repository interface {
	// FindCatalogItem returns the catalog entry for the given item ID, or a
	// not_found AppError when the catalog does not know the item.
	FindCatalogItem(ctx context.Context, itemID string) (*CatalogItem, error)

	// AddQuantity adds quantity to the account's stack of itemID, creating
	// the stack if none exists. Source and mintable are only set on creation;
	// topping up an existing stack keeps its original provenance.
	AddQuantity(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error

	// ListByAccount returns the account's owned stacks joined with their
	// catalog entries, ordered by item ID.
	ListByAccount(ctx context.Context, accountID string) ([]ItemView, error)
}

type mariadbRepository struct {
	db *sql.DB
}

// NewRepository creates a repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &mariadbRepository{db: db}
}

func (r *mariadbRepository) FindCatalogItem(ctx context.Context, itemID string) (*CatalogItem, error) {
	query := `SELECT item_id, item_name, description, amount, currency, kind, created_at
	          FROM marketplace_items WHERE item_id = ?`

	var item CatalogItem
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&item.ItemID, &item.Name, &item.Description,
		&item.Amount, &item.Currency, &item.Kind, &item.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("catalog item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding catalog item %s: %w", itemID, err)
	}
	return &item, nil
}

func (r *mariadbRepository) AddQuantity(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error {
	// The (account_id, item_id) pair is unique, so a concurrent grant for
	// the same stack lands on the duplicate-key path and both quantities
	// survive.
	query := `INSERT INTO inventory_items
	          (id, account_id, item_id, quantity, mintable, source, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = VALUES(updated_at)`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), accountID, itemID, quantity, mintable, source, now, now)
	if err != nil {
		return fmt.Errorf("adding %d x %s to account %s: %w", quantity, itemID, accountID, err)
	}
	return nil
}

func (r *mariadbRepository) ListByAccount(ctx context.Context, accountID string) ([]ItemView, error) {
	query := `SELECT i.item_id, m.item_name, m.description, m.kind, i.quantity, i.mintable
	          FROM inventory_items i
	          JOIN marketplace_items m ON m.item_id = i.item_id
	          WHERE i.account_id = ?
	          ORDER BY i.item_id`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing inventory for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var items []ItemView
	for rows.Next() {
		var v ItemView
		if err := rows.Scan(&v.ItemID, &v.Name, &v.Description, &v.Kind, &v.Quantity, &v.Mintable); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inventory rows: %w", err)
	}
	return items, nil
}

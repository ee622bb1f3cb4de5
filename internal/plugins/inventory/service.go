package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/plugins/wallet"
)

// Service handles business logic for account inventories. It satisfies
// wallet.Granter so the wallet plugin can award the signup bundle without
// depending on this package.
type Service interface {
	// Grant awards the given items to an account. Each item is validated
	// against the catalog and applied independently: a bad item does not
	// block the rest of the bundle. Returns the combined error for any
	// items that failed.
	Grant(ctx context.Context, accountID string, items []wallet.ItemGrant, opts wallet.GrantOptions) error

	// List returns the account's inventory joined with catalog metadata.
	List(ctx context.Context, accountID string) ([]ItemView, error)
}

type service struct {
	repo Repository
}

// NewService creates an inventory service with the given repository.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Grant(ctx context.Context, accountID string, items []wallet.ItemGrant, opts wallet.GrantOptions) error {
	if accountID == "" {
		return apperror.NewBadRequest("Account is required!")
	}

	var failed []error
	granted := 0
	for _, grant := range items {
		if err := s.grantOne(ctx, accountID, grant, opts); err != nil {
			slog.Error("item grant failed",
				slog.String("account_id", accountID),
				slog.String("item_id", grant.ItemID),
				slog.String("reason", opts.Reason),
				slog.Any("error", err))
			failed = append(failed, fmt.Errorf("granting %s: %w", grant.ItemID, err))
			continue
		}
		granted++
	}

	if granted > 0 {
		slog.Info("items granted",
			slog.String("account_id", accountID),
			slog.String("reason", opts.Reason),
			slog.Int("granted", granted),
			slog.Int("failed", len(failed)))
	}
	return errors.Join(failed...)
}

func (s *service) grantOne(ctx context.Context, accountID string, grant wallet.ItemGrant, opts wallet.GrantOptions) error {
	if grant.Quantity <= 0 {
		return apperror.NewBadRequest("Quantity must be positive!")
	}

	// Only catalog items may be granted.
	if _, err := s.repo.FindCatalogItem(ctx, grant.ItemID); err != nil {
		return err
	}

	return s.repo.AddQuantity(ctx, accountID, grant.ItemID, grant.Quantity, opts.Mintable, opts.Reason)
}

func (s *service) List(ctx context.Context, accountID string) ([]ItemView, error) {
	items, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ItemView{}
	}
	return items, nil
}

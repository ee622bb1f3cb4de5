package inventory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emberforge/arcadia/internal/apperror"
	"github.com/emberforge/arcadia/internal/plugins/wallet"
)

// --- Mock Repository ---

type mockRepo struct {
	findCatalogItemFn func(ctx context.Context, itemID string) (*CatalogItem, error)
	addQuantityFn     func(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error
	listByAccountFn   func(ctx context.Context, accountID string) ([]ItemView, error)
}

func (m *mockRepo) FindCatalogItem(ctx context.Context, itemID string) (*CatalogItem, error) {
	if m.findCatalogItemFn != nil {
		return m.findCatalogItemFn(ctx, itemID)
	}
	return &CatalogItem{ItemID: itemID, Name: "Test Item"}, nil
}

func (m *mockRepo) AddQuantity(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error {
	if m.addQuantityFn != nil {
		return m.addQuantityFn(ctx, accountID, itemID, quantity, mintable, source)
	}
	return nil
}

func (m *mockRepo) ListByAccount(ctx context.Context, accountID string) ([]ItemView, error) {
	if m.listByAccountFn != nil {
		return m.listByAccountFn(ctx, accountID)
	}
	return nil, nil
}

// --- Grant Tests ---

func TestGrant_Success(t *testing.T) {
	type grant struct {
		itemID   string
		quantity int
		mintable bool
		source   string
	}
	var applied []grant

	repo := &mockRepo{
		addQuantityFn: func(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error {
			applied = append(applied, grant{itemID, quantity, mintable, source})
			return nil
		},
	}
	svc := NewService(repo)

	err := svc.Grant(context.Background(), "acct-1", []wallet.ItemGrant{
		{ItemID: "ENG-001", Quantity: 3},
		{ItemID: "XPPOT-001", Quantity: 2},
	}, wallet.GrantOptions{Mintable: true, Reason: "welcome_bonus_wallet_signup"})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if len(applied) != 2 {
		t.Fatalf("expected 2 grants applied, got %d", len(applied))
	}
	if applied[0].itemID != "ENG-001" || applied[0].quantity != 3 {
		t.Errorf("unexpected first grant: %+v", applied[0])
	}
	if !applied[0].mintable || applied[0].source != "welcome_bonus_wallet_signup" {
		t.Errorf("expected mintable welcome grant, got %+v", applied[0])
	}
}

func TestGrant_EmptyAccount(t *testing.T) {
	svc := NewService(&mockRepo{})

	err := svc.Grant(context.Background(), "", []wallet.ItemGrant{{ItemID: "ENG-001", Quantity: 1}}, wallet.GrantOptions{})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestGrant_UnknownItemSkippedOthersApplied(t *testing.T) {
	var applied []string
	repo := &mockRepo{
		findCatalogItemFn: func(ctx context.Context, itemID string) (*CatalogItem, error) {
			if itemID == "GHOST-001" {
				return nil, apperror.NewNotFound("catalog item not found")
			}
			return &CatalogItem{ItemID: itemID}, nil
		},
		addQuantityFn: func(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error {
			applied = append(applied, itemID)
			return nil
		},
	}
	svc := NewService(repo)

	err := svc.Grant(context.Background(), "acct-1", []wallet.ItemGrant{
		{ItemID: "ENG-001", Quantity: 1},
		{ItemID: "GHOST-001", Quantity: 1},
		{ItemID: "XPPOT-001", Quantity: 1},
	}, wallet.GrantOptions{})

	if err == nil {
		t.Fatal("expected a combined error for the unknown item")
	}
	if !strings.Contains(err.Error(), "GHOST-001") {
		t.Errorf("expected the failing item named in the error, got %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected the valid items still applied, got %v", applied)
	}
}

func TestGrant_NonPositiveQuantityRejected(t *testing.T) {
	applied := 0
	repo := &mockRepo{
		addQuantityFn: func(ctx context.Context, accountID, itemID string, quantity int, mintable bool, source string) error {
			applied++
			return nil
		},
	}
	svc := NewService(repo)

	err := svc.Grant(context.Background(), "acct-1", []wallet.ItemGrant{
		{ItemID: "ENG-001", Quantity: 0},
		{ItemID: "ENG-002", Quantity: -5},
	}, wallet.GrantOptions{})
	if err == nil {
		t.Fatal("expected errors for non-positive quantities")
	}
	if applied != 0 {
		t.Errorf("expected no grants applied, got %d", applied)
	}
}

// --- List Tests ---

func TestList_EmptyInventoryReturnsEmptySlice(t *testing.T) {
	svc := NewService(&mockRepo{})

	items, err := svc.List(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items == nil {
		t.Error("expected an empty slice, not nil, so JSON renders []")
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestList_PassesThroughRepositoryError(t *testing.T) {
	repo := &mockRepo{
		listByAccountFn: func(ctx context.Context, accountID string) ([]ItemView, error) {
			return nil, errors.New("db connection lost")
		},
	}
	svc := NewService(repo)

	if _, err := svc.List(context.Background(), "acct-1"); err == nil {
		t.Fatal("expected the repository error to surface")
	}
}

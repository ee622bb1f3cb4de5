package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// catalogSeed is the minimal marketplace catalog the server needs at first
// boot: the items referenced by the wallet-signup starter bundle plus the
// remaining energy tiers. Seeding is idempotent -- existing rows are kept.
var catalogSeed = []struct {
	ItemID      string
	Name        string
	Description string
	Amount      int
	Currency    string
	Kind        string
}{
	{"ENG-001", "energy +1", "Adds 1 energy to your account.", 10, "points", "energy"},
	{"ENG-002", "energy +3", "Adds 3 energy to your account.", 25, "points", "energy"},
	{"ENG-003", "energy +5", "Adds 5 energy to your account.", 40, "points", "energy"},
	{"ENG-004", "energy +10", "Adds 10 energy to your account.", 75, "points", "energy"},
	{"XPPOT-001", "XP Potion x2", "Doubles XP gain for 24 hours.", 50, "coins", "potion"},
	{"XPPOT-002", "XP Potion x4", "Quadruples XP gain for 24 hours.", 100, "coins", "potion"},
}

// SeedCatalog inserts the baseline marketplace items if they are missing.
// Runs on every startup after migrations.
func SeedCatalog(ctx context.Context, db *sql.DB) error {
	query := `INSERT IGNORE INTO marketplace_items
	          (item_id, item_name, description, amount, currency, kind)
	          VALUES (?, ?, ?, ?, ?, ?)`

	seeded := 0
	for _, item := range catalogSeed {
		res, err := db.ExecContext(ctx, query,
			item.ItemID, item.Name, item.Description, item.Amount, item.Currency, item.Kind)
		if err != nil {
			return fmt.Errorf("seeding catalog item %s: %w", item.ItemID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seeded++
		}
	}

	if seeded > 0 {
		slog.Info("marketplace catalog seeded", slog.Int("items", seeded))
	}
	return nil
}

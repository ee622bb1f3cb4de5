package inventory

import "time"

// CatalogItem is one purchasable entry in the marketplace catalog. The
// catalog is the source of truth for what an inventory row may reference;
// grants against unknown item IDs are rejected.
type CatalogItem struct {
	ItemID      string
	Name        string
	Description string
	Amount      int
	Currency    string
	Kind        string
	CreatedAt   time.Time
}

// Item is one stack of a catalog item owned by an account. Quantity is
// always positive; a stack that reaches zero is deleted rather than kept
// around as an empty row.
type Item struct {
	ID        string
	AccountID string
	ItemID    string
	Quantity  int
	Mintable  bool
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemView is the JSON shape returned to clients: the owned stack joined
// with its catalog entry.
type ItemView struct {
	ItemID      string `json:"itemId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Quantity    int    `json:"quantity"`
	Mintable    bool   `json:"mintable"`
}

// ListResponse wraps the inventory listing payload.
type ListResponse struct {
	Items []ItemView `json:"items"`
}

// Package wallet handles the blockchain-wallet credential path for Arcadia:
// nonce challenge issuance, EIP-191 signature verification, wallet login
// with first-time account provisioning, and wallet link/unlink for
// password accounts. Token issuance is shared with the password path via
// internal/session.
package wallet

import "context"

// --- Request DTOs (bound from HTTP requests) ---

// NonceRequest asks for a fresh challenge for a wallet address.
type NonceRequest struct {
	WalletAddress string `json:"walletAddress" form:"walletAddress"`
}

// LoginRequest submits a signed challenge for login.
type LoginRequest struct {
	WalletAddress string `json:"walletAddress" form:"walletAddress"`
	Signature     string `json:"signature" form:"signature"`
}

// LinkRequest submits a signed challenge to bind a wallet to the
// authenticated account.
type LinkRequest struct {
	WalletAddress string `json:"walletAddress" form:"walletAddress"`
	Signature     string `json:"signature" form:"signature"`
}

// --- Responses ---

// NonceResponse carries the challenge back to the client: the raw nonce and
// the exact message text the wallet must sign.
type NonceResponse struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// LoginResult is returned by a successful wallet login. IsNewUser is true
// only on the call that provisioned the account.
type LoginResult struct {
	Auth      string `json:"auth"`
	IsNewUser bool   `json:"isNewUser"`
}

// --- Item granting (external collaborator) ---

// ItemGrant names one catalog item and a quantity to award.
type ItemGrant struct {
	ItemID   string
	Quantity int
}

// GrantOptions qualifies a grant for bookkeeping.
type GrantOptions struct {
	Mintable bool
	Reason   string
}

// Granter awards items to an account. Implemented by the inventory plugin;
// this package only depends on the interface. Grant failures never block
// login completion.
type Granter interface {
	Grant(ctx context.Context, accountID string, items []ItemGrant, opts GrantOptions) error
}

// starterBundle is awarded once, on first wallet signup.
var starterBundle = []ItemGrant{
	{ItemID: "ENG-001", Quantity: 3},
	{ItemID: "XPPOT-001", Quantity: 2},
}

// starterBundleReason tags the welcome grant in inventory bookkeeping.
const starterBundleReason = "welcome_bonus_wallet_signup"

// Package auth handles the password credential path for Arcadia: account
// registration, username/password login, logout, and session resolution.
// Token issuance is shared with the wallet path via internal/session.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest holds the credentials from the login query string. The
// endpoint is a GET with query parameters for compatibility with the
// existing game client.
type LoginRequest struct {
	Username string `query:"username"`
	Password string `query:"password"`
}

// RegisterRequest holds the data submitted by the registration call.
type RegisterRequest struct {
	Username  string `json:"username" form:"username"`
	Password  string `json:"password" form:"password"`
	Email     string `json:"email" form:"email"`
	Firstname string `json:"firstname" form:"firstname"`
	Lastname  string `json:"lastname" form:"lastname"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the validated input for creating a new account.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	Firstname string
	Lastname  string
}

// --- Responses ---

// LoginResult is returned by a successful login.
type LoginResult struct {
	// Auth is the role embedded in the issued token ("user" for players).
	Auth string `json:"auth"`
}

// SessionInfo is the resolved identity returned by GET /auth/session.
// Profile fields default to empty when the account has no profile record.
type SessionInfo struct {
	Auth           string `json:"auth"`
	AccountID      string `json:"id"`
	Username       string `json:"username"`
	Status         string `json:"status"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	ProfilePicture string `json:"profilepicture"`
}

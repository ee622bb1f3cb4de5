package account

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "active", "banned", "suspended"} {
		status, err := ParseStatus(valid)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", valid, err)
		}
		if string(status) != valid {
			t.Errorf("ParseStatus(%q) = %q", valid, status)
		}
	}

	for _, invalid := range []string{"", "Active", "deleted", "ACTIVE"} {
		if _, err := ParseStatus(invalid); err == nil {
			t.Errorf("ParseStatus(%q): expected error", invalid)
		}
	}
}

func TestNonceExpired(t *testing.T) {
	now := time.Now()
	future := now.Add(5 * time.Minute)
	past := now.Add(-time.Minute)

	cases := []struct {
		name    string
		nonce   string
		expiry  *time.Time
		expired bool
	}{
		{"live challenge", "abc", &future, false},
		{"past expiry", "abc", &past, true},
		{"no nonce", "", &future, true},
		{"no expiry", "abc", nil, true},
		{"nothing set", "", nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acct := &Account{WalletNonce: tc.nonce, WalletNonceExpiry: tc.expiry}
			if got := acct.NonceExpired(now); got != tc.expired {
				t.Errorf("NonceExpired = %v, want %v", got, tc.expired)
			}
		})
	}
}

func TestCredentialHelpers(t *testing.T) {
	acct := &Account{}
	if acct.HasWallet() || acct.HasPassword() {
		t.Error("empty account should have no credentials")
	}

	acct.WalletAddress = "0xabc"
	if !acct.HasWallet() {
		t.Error("expected HasWallet after setting an address")
	}

	acct.PasswordHash = "hash"
	if !acct.HasPassword() {
		t.Error("expected HasPassword after setting a hash")
	}
}

package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/emberforge/arcadia/internal/apperror"
)

// signatureLength is the byte length of a secp256k1 signature: R (32) ||
// S (32) || V (1).
const signatureLength = 65

// ChallengeMessage renders the canonical challenge text for a nonce and a
// lowercase wallet address. Both issuance and verification must render it
// identically -- the exact bytes are a contract with signing wallets.
func ChallengeMessage(nonce, address string) string {
	return fmt.Sprintf("Sign this message to authenticate with your wallet:\n\nNonce: %s\nWallet: %s", nonce, address)
}

// Recover returns the lowercase address that produced an EIP-191
// personal_sign signature over the given message. Pure function: no nonce
// or expiry handling happens here -- callers check the stored challenge
// before invoking it.
func Recover(message, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}
	if len(sig) != signatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", signatureLength, len(sig))
	}

	// Wallets emit V as 27/28; secp256k1 recovery expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	// EIP-191 personal_sign: keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := ethcrypto.Keccak256([]byte(prefixed))

	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}

	return strings.ToLower(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}

// VerifySignature checks that the signature over message was produced by
// claimedAddress. The comparison is case-insensitive; addresses arrive in
// mixed checksum casing.
func VerifySignature(message, signature, claimedAddress string) error {
	recovered, err := Recover(message, signature)
	if err != nil {
		appErr := apperror.NewUnauthorized("Invalid signature format!")
		appErr.Internal = err
		return appErr
	}

	if !strings.EqualFold(recovered, claimedAddress) {
		return apperror.NewUnauthorized("Invalid signature!")
	}

	return nil
}

// Package session issues and validates Arcadia's signed session tokens and
// enforces the single-active-session invariant. Tokens are RS256-signed and
// carry the account's trusted web-token marker; the validator re-reads the
// stored marker on every request, so issuing a new token permanently
// invalidates every earlier one for the same account.
package session

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// KeyPair holds the RSA material for signing and verifying session tokens.
// Loaded once at process start and treated as immutable; it is injected into
// the issuer and validator rather than looked up globally, so tests can
// substitute ephemeral key pairs.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// LoadKeyPair reads and parses the PEM-encoded RSA key pair from disk.
func LoadKeyPair(privatePath, publicPath string) (*KeyPair, error) {
	priv, err := loadPrivateKey(privatePath)
	if err != nil {
		return nil, fmt.Errorf("loading private key: %w", err)
	}

	pub, err := loadPublicKey(publicPath)
	if err != nil {
		return nil, fmt.Errorf("loading public key: %w", err)
	}

	return &KeyPair{Private: priv, Public: pub}, nil
}

// loadPrivateKey parses a PEM RSA private key in PKCS#1 or PKCS#8 form.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing private key: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA private key", path)
	}
	return key, nil
}

// loadPublicKey parses a PEM RSA public key in PKIX or PKCS#1 form.
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing public key: %w", path, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA public key", path)
	}
	return key, nil
}

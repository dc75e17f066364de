package domain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// PublicKey is an ed25519 public key stored as hex text in TOML files.
type PublicKey struct {
	value ed25519.PublicKey
}

func NewPublicKey(key ed25519.PublicKey) PublicKey {
	return PublicKey{value: key}
}

func (p *PublicKey) UnmarshalText(text []byte) error {
	value, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(value) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(value))
	}
	p.value = value
	return nil
}

func (p PublicKey) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(p.value)))
	hex.Encode(text, p.value)
	return text, nil
}

func (p PublicKey) Value() ed25519.PublicKey {
	return p.value
}

// String is the hex form, shown to users when asking them to trust a key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p.value)
}

package domain

import (
	"crypto/ed25519"
	"time"
)

// ServerPin is the key a client trusts for a messaging server.
type ServerPin struct {
	ID        string
	Address   string
	PublicKey ed25519.PublicKey
	PinnedAt  time.Time
}

type PinRepository interface {
	Get(id string) (ServerPin, error)
	Set(id string, pin ServerPin) error
	Delete(id string) error
}

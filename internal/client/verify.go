package client

import (
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/credentials"

	"github.com/charadev96/gochan/internal/client/domain"
	shared "github.com/charadev96/gochan/internal/shared/domain"
	"github.com/charadev96/gochan/internal/shared/log"
)

// PinVerifier accepts the messaging server's self-signed certificate when
// it is signed by the key pinned for ServerID. An unknown or changed key is
// put to Trust and pinned once trusted.
type PinVerifier struct {
	ServerID string
	Address  string
	Pins     domain.PinRepository
	Logger   *zerolog.Logger

	Trust func(*x509.Certificate) bool
	Now   func() time.Time
}

// Credentials returns TLS transport credentials that verify the server
// with v instead of a certificate authority.
func (v *PinVerifier) Credentials() credentials.TransportCredentials {
	return credentials.NewTLS(&tls.Config{
		MinVersion:            tls.VersionTLS13,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: v.Verify,
	})
}

func (v *PinVerifier) Verify(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	logger := log.OrNop(v.Logger).With().
		Str("server", v.ServerID).
		Logger()

	if len(rawCerts) == 0 {
		return fmt.Errorf("failed to verify certificate: none presented")
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	key, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("incorrect certificate public key format (must be ed25519)")
	}
	if err := v.verifyHost(cert); err != nil {
		return err
	}

	now := v.now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf(
			"certificate not yet valid, current time %s is before %s",
			now.Format(time.RFC3339),
			cert.NotBefore.Format(time.RFC3339),
		)
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf(
			"certificate expired, current time %s is after %s",
			now.Format(time.RFC3339),
			cert.NotAfter.Format(time.RFC3339),
		)
	}

	pin, err := v.Pins.Get(v.ServerID)
	switch {
	case errors.Is(err, shared.ErrNotExist):
		logger.Warn().Msg("server key is not pinned")
		pin = domain.ServerPin{ID: v.ServerID}
	case err != nil:
		return fmt.Errorf("failed to get server pin '%s': %w", v.ServerID, err)
	case len(pin.PublicKey) == ed25519.PublicKeySize &&
		ed25519.Verify(pin.PublicKey, cert.RawTBSCertificate, cert.Signature):
		logger.Debug().Msg("certificate verified")
		return nil
	default:
		logger.Warn().Msg("certificate signature mismatch")
	}

	if !ed25519.Verify(key, cert.RawTBSCertificate, cert.Signature) {
		return fmt.Errorf("failed to verify certificate: not self-signed")
	}
	if v.Trust == nil {
		return fmt.Errorf("failed to verify certificate: key is not pinned")
	}
	logger.Info().Msg("awaiting user confirmation")
	if !v.Trust(cert) {
		return fmt.Errorf("failed to verify certificate: key denied by user")
	}

	pin.Address = v.Address
	pin.PublicKey = key
	pin.PinnedAt = now
	if err := v.Pins.Set(v.ServerID, pin); err != nil {
		return fmt.Errorf("failed to save server pin: %w", err)
	}
	logger.Info().
		Stringer("key", shared.NewPublicKey(key)).
		Msg("pinned server key")
	return nil
}

func (v *PinVerifier) verifyHost(cert *x509.Certificate) error {
	if v.Address == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(v.Address)
	if err != nil {
		host = v.Address
	}
	if err := cert.VerifyHostname(host); err != nil {
		return fmt.Errorf("failed to verify certificate hostname: %w", err)
	}
	return nil
}

func (v *PinVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

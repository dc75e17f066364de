package server

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/charadev96/gochan/internal/shared/log"
)

const (
	permKey  = 0600
	permCert = 0644

	CertificateValidity = 365 * 24 * time.Hour
)

// EnsureCertificate loads the messaging endpoint's keypair, creating the
// key and a self-signed certificate for hosts when they are missing.
func EnsureCertificate(certPath, keyPath string, hosts []string, logger *zerolog.Logger) (tls.Certificate, error) {
	template, err := CertificateTemplate(hosts, CertificateValidity)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM, keyPEM, err := EnsureX509KeyPair(certPath, keyPath, template, logger)
	if err != nil {
		return tls.Certificate{}, err
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load keypair: %w", err)
	}
	return cert, nil
}

// CertificateTemplate describes a self-signed serving certificate. Hosts
// that parse as IP addresses become IP SANs, the rest DNS names.
func CertificateTemplate(hosts []string, validFor time.Duration) (x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return x509.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}
	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"gochan"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	return template, nil
}

// EnsureX509KeyPair returns PEM encoded certificate and ed25519 key. A
// missing key is generated. The certificate is issued again when it is
// missing, expired, or the key is new.
func EnsureX509KeyPair(
	certPath, keyPath string,
	template x509.Certificate,
	logger *zerolog.Logger,
) ([]byte, []byte, error) {
	var (
		keyIsNew bool
		key      ed25519.PrivateKey
		keyPEM   []byte
		certPEM  []byte
	)
	logger = log.OrNop(logger)

	if _, err := os.Stat(keyPath); errors.Is(err, os.ErrNotExist) {
		logger.Warn().
			Str("file", keyPath).
			Msg("private key does not exist")
		key, keyPEM, err = generateKeyFile(keyPath)
		if err != nil {
			return nil, nil, err
		}
		keyIsNew = true
		logger.Info().
			Str("file", keyPath).
			Msg("created new private key")
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve private key: %w", err)
	} else {
		key, keyPEM, err = loadKeyFile(keyPath)
		if err != nil {
			return nil, nil, err
		}
	}

	certPEM, err := os.ReadFile(certPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn().
			Str("file", certPath).
			Msg("certificate does not exist")
	case err != nil:
		return nil, nil, fmt.Errorf("failed to read certificate: %w", err)
	case keyIsNew:
		certPEM = nil
	default:
		if reason := unusableCertificate(certPEM, key); reason != "" {
			logger.Warn().
				Str("file", certPath).
				Str("reason", reason).
				Msg("replacing certificate")
			certPEM = nil
		}
	}

	if certPEM == nil {
		certPEM, err = generateCertificateFile(certPath, key, template)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().
			Str("file", certPath).
			Time("expires", template.NotAfter).
			Msg("created new certificate")
	}

	return certPEM, keyPEM, nil
}

func unusableCertificate(certPEM []byte, key ed25519.PrivateKey) string {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "not PEM encoded"
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "unparsable"
	}
	if time.Now().After(cert.NotAfter) {
		return "expired"
	}
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok || !pub.Equal(key.Public()) {
		return "issued for another key"
	}
	return ""
}

func generateKeyFile(keyPath string) (ed25519.PrivateKey, []byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	var keyBuf bytes.Buffer
	if err := pem.Encode(&keyBuf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	if err := os.WriteFile(keyPath, keyBuf.Bytes(), permKey); err != nil {
		return nil, nil, fmt.Errorf("failed to write key PEM file to disk: %w", err)
	}

	return key, keyBuf.Bytes(), nil
}

func loadKeyFile(keyPath string) (ed25519.PrivateKey, []byte, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key '%s': not PEM encoded", keyPath)
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := keyAny.(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("incorrect private key format (must be ed25519)")
	}

	return key, keyPEM, nil
}

func generateCertificateFile(
	certPath string, key ed25519.PrivateKey,
	template x509.Certificate,
) ([]byte, error) {
	cert, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed generating certificate: %w", err)
	}

	var certBuf bytes.Buffer
	if err := pem.Encode(&certBuf, &pem.Block{Type: "CERTIFICATE", Bytes: cert}); err != nil {
		return nil, fmt.Errorf("failed encoding certificate: %w", err)
	}
	if err := os.WriteFile(certPath, certBuf.Bytes(), permCert); err != nil {
		return nil, fmt.Errorf("failed to write certificate PEM file to disk: %w", err)
	}

	return certBuf.Bytes(), nil
}

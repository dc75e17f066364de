package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	DefaultAdminAddr     = "127.0.0.1:7400"
	DefaultMessagingAddr = "127.0.0.1:7401"
	DefaultCertificate   = "gochan.crt"
	DefaultKey           = "gochan.key"
)

type ListenerConfig struct {
	Addr string `toml:"address"`
}

// MessagingConfig is the TLS endpoint users talk to. Certificate and Key
// are created on first start when missing.
type MessagingConfig struct {
	Addr        string   `toml:"address"`
	Certificate string   `toml:"certificate" env:"GOCHAN_TLS_CERT"`
	Key         string   `toml:"key" env:"GOCHAN_TLS_KEY"`
	Hosts       []string `toml:"hosts"`
}

// CertificateHosts lists the names the certificate is issued for: Hosts
// when set, otherwise the host of Addr and localhost.
func (c MessagingConfig) CertificateHosts() []string {
	if len(c.Hosts) > 0 {
		return c.Hosts
	}
	hosts := []string{"localhost"}
	if host, _, err := net.SplitHostPort(c.Addr); err == nil && host != "" && host != "localhost" {
		hosts = append([]string{host}, hosts...)
	}
	return hosts
}

type StorageConfig struct {
	// Path of the sqlite database. Empty keeps everything in memory.
	Path string `toml:"path" env:"GOCHAN_STORAGE_PATH"`
}

type LogConfig struct {
	Level string `toml:"level" env:"GOCHAN_LOG_LEVEL"`
}

type ChannelSeed struct {
	Name    string   `toml:"name"`
	Members []string `toml:"members"`
}

type Config struct {
	Admin     ListenerConfig  `toml:"admin"`
	Messaging MessagingConfig `toml:"messaging"`
	Storage   StorageConfig   `toml:"storage"`
	Log       LogConfig       `toml:"log"`

	// Channels are created at startup when storage does not know them yet.
	Channels []ChannelSeed `toml:"channels"`

	AdminAddr     string `toml:"-" env:"GOCHAN_ADMIN_ADDR"`
	MessagingAddr string `toml:"-" env:"GOCHAN_MESSAGING_ADDR"`
}

func Default() Config {
	return Config{
		Admin: ListenerConfig{Addr: DefaultAdminAddr},
		Messaging: MessagingConfig{
			Addr:        DefaultMessagingAddr,
			Certificate: DefaultCertificate,
			Key:         DefaultKey,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load decodes the TOML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load config '%s': %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.AdminAddr != "" {
		cfg.Admin.Addr = cfg.AdminAddr
	}
	if cfg.MessagingAddr != "" {
		cfg.Messaging.Addr = cfg.MessagingAddr
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Admin.Addr == "" {
		return fmt.Errorf("admin address must be set")
	}
	if c.Messaging.Addr == "" {
		return fmt.Errorf("messaging address must be set")
	}
	if c.Admin.Addr == c.Messaging.Addr {
		return fmt.Errorf("admin and messaging must listen on different addresses")
	}
	if c.Messaging.Certificate == "" || c.Messaging.Key == "" {
		return fmt.Errorf("messaging certificate and key paths must be set")
	}
	if c.Messaging.Certificate == c.Messaging.Key {
		return fmt.Errorf("messaging certificate and key must be different files")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel seed without a name")
		}
		if _, ok := seen[ch.Name]; ok {
			return fmt.Errorf("channel '%s' seeded twice", ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gochan.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultAdminAddr, cfg.Admin.Addr)
	require.Equal(t, DefaultMessagingAddr, cfg.Messaging.Addr)
	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.Storage.Path)
	require.Equal(t, DefaultCertificate, cfg.Messaging.Certificate)
	require.Equal(t, DefaultKey, cfg.Messaging.Key)
	require.Equal(t, []string{"127.0.0.1", "localhost"}, cfg.Messaging.CertificateHosts())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[admin]
address = "127.0.0.1:9000"

[messaging]
certificate = "/etc/gochan/tls.crt"
key = "/etc/gochan/tls.key"
hosts = ["chat.example.org"]

[storage]
path = "/var/lib/gochan.db"

[[channels]]
name = "general"
members = ["bob"]

[[channels]]
name = "random"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Admin.Addr)
	require.Equal(t, DefaultMessagingAddr, cfg.Messaging.Addr)
	require.Equal(t, "/var/lib/gochan.db", cfg.Storage.Path)
	require.Equal(t, "/etc/gochan/tls.crt", cfg.Messaging.Certificate)
	require.Equal(t, "/etc/gochan/tls.key", cfg.Messaging.Key)
	require.Equal(t, []string{"chat.example.org"}, cfg.Messaging.CertificateHosts())
	require.Equal(t, []ChannelSeed{
		{Name: "general", Members: []string{"bob"}},
		{Name: "random"},
	}, cfg.Channels)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOCHAN_MESSAGING_ADDR", "0.0.0.0:9001")
	t.Setenv("GOCHAN_LOG_LEVEL", "debug")
	t.Setenv("GOCHAN_STORAGE_PATH", "env.db")
	t.Setenv("GOCHAN_TLS_KEY", "env.key")

	path := writeConfig(t, "[storage]\npath = \"file.db\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9001", cfg.Messaging.Addr)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "env.db", cfg.Storage.Path)
	require.Equal(t, "env.key", cfg.Messaging.Key)
	require.Equal(t, DefaultCertificate, cfg.Messaging.Certificate)
}

func TestLoadInvalid(t *testing.T) {
	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[admin\n"))
		require.ErrorContains(t, err, "failed to load config")
	})

	t.Run("same address twice", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[admin]\naddress = \"127.0.0.1:7401\"\n"))
		require.ErrorContains(t, err, "different addresses")
	})

	t.Run("certificate without key", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[messaging]\nkey = \"\"\n"))
		require.ErrorContains(t, err, "certificate and key paths")
	})

	t.Run("duplicate channel seed", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[[channels]]\nname = \"general\"\n[[channels]]\nname = \"general\"\n"))
		require.ErrorContains(t, err, "seeded twice")
	})
}

package repository

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	client "github.com/charadev96/gochan/internal/client/domain"
	shared "github.com/charadev96/gochan/internal/shared/domain"
)

func TestTOMLPinRepository(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gochan", "pins.toml")
	repo := &TOMLPinRepository{FilePath: path}

	_, err := repo.Get("local")
	require.ErrorIs(t, err, shared.ErrNotExist)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pinnedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	pin := client.ServerPin{ID: "local", Address: "127.0.0.1:7401", PublicKey: pub, PinnedAt: pinnedAt}
	require.NoError(t, repo.Set("local", pin))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(permPins), info.Mode().Perm())

	got, err := repo.Get("local")
	require.NoError(t, err)
	require.Equal(t, pin.Address, got.Address)
	require.Equal(t, pub, got.PublicKey)
	require.True(t, pinnedAt.Equal(got.PinnedAt))

	t.Run("other instance reads the file", func(t *testing.T) {
		other := &TOMLPinRepository{FilePath: path}
		got, err := other.Get("local")
		require.NoError(t, err)
		require.Equal(t, pub, got.PublicKey)
	})

	require.NoError(t, repo.Delete("local"))
	_, err = repo.Get("local")
	require.ErrorIs(t, err, shared.ErrNotExist)
	require.ErrorIs(t, repo.Delete("local"), shared.ErrNotExist)
}

func TestTOMLPinRepositoryRejectsBadKey(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pins.toml")
	require.NoError(t, os.WriteFile(path, []byte("[servers.local]\naddress = \"127.0.0.1:7401\"\npublicKey = \"abcd\"\n"), 0600))

	repo := &TOMLPinRepository{FilePath: path}
	_, err := repo.Get("local")
	require.ErrorContains(t, err, "failed to load pins")
}

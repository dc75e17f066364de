package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	server "github.com/charadev96/gochan/internal/server/domain"
)

func TestDefaultChannelAssigner(t *testing.T) {
	t.Parallel()

	t.Run("set overwrites", func(t *testing.T) {
		a := NewDefaultChannelAssigner()
		_, ok := a.GetDefault("alice")
		require.False(t, ok)

		a.SetDefault("alice", "general")
		a.SetDefault("alice", "random")
		ch, ok := a.GetDefault("alice")
		require.True(t, ok)
		require.Equal(t, "random", ch)
	})

	t.Run("clear only matching binding", func(t *testing.T) {
		a := NewDefaultChannelAssigner()
		a.SetDefault("alice", "general")

		require.False(t, a.ClearIf("alice", "random"))
		require.False(t, a.ClearIf("bob", ""))
		require.True(t, a.ClearIf("alice", "general"))

		_, ok := a.GetDefault("alice")
		require.False(t, ok)
	})

	t.Run("restore", func(t *testing.T) {
		a := NewDefaultChannelAssigner()
		a.Restore(map[server.UserID]string{"alice": "general", "bob": "random"})

		ch, _ := a.GetDefault("bob")
		require.Equal(t, "random", ch)
	})
}

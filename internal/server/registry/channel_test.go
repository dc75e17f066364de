package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	server "github.com/charadev96/gochan/internal/server/domain"
)

func TestChannelRegistryCreate(t *testing.T) {
	t.Parallel()

	t.Run("resolves created channel", func(t *testing.T) {
		r := NewChannelRegistry()
		ch, err := r.Create("general")
		require.NoError(t, err)
		require.Equal(t, "general", ch.Name())
		require.NotEqual(t, uuid.Nil, ch.ID())

		got, ok := r.Resolve("general")
		require.True(t, ok)
		require.Same(t, ch, got)
	})

	t.Run("names match exactly", func(t *testing.T) {
		r := NewChannelRegistry()
		_, err := r.Create("general")
		require.NoError(t, err)

		_, ok := r.Resolve("General")
		require.False(t, ok)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		r := NewChannelRegistry()
		_, err := r.Create("general")
		require.NoError(t, err)

		_, err = r.Create("general")
		require.ErrorIs(t, err, server.ErrChannelExists)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		r := NewChannelRegistry()
		_, err := r.Create("")
		require.ErrorIs(t, err, server.ErrInvalidChannel)
	})
}

func TestChannelRegistryRestore(t *testing.T) {
	t.Parallel()

	r := NewChannelRegistry()
	id := uuid.New()
	ch, err := r.Restore(id, "general", []server.UserID{"bob", "alice", "bob"})
	require.NoError(t, err)
	require.Equal(t, id, ch.ID())
	require.Equal(t, []server.UserID{"alice", "bob"}, ch.Members())
}

func TestChannelRegistryDelete(t *testing.T) {
	t.Parallel()

	r := NewChannelRegistry()
	ch, err := r.Create("general")
	require.NoError(t, err)

	deleted, ok := r.Delete("general")
	require.True(t, ok)
	require.Same(t, ch, deleted)

	_, ok = r.Resolve("general")
	require.False(t, ok)
	require.Equal(t, Closed, ch.AddMember("alice"))
	require.Equal(t, 0, ch.Len())

	_, ok = r.Delete("general")
	require.False(t, ok)
}

func TestChannelRegistryList(t *testing.T) {
	t.Parallel()

	r := NewChannelRegistry()
	for _, name := range []string{"random", "general", "help"} {
		_, err := r.Create(name)
		require.NoError(t, err)
	}

	var names []string
	for _, ch := range r.List() {
		names = append(names, ch.Name())
	}
	require.Equal(t, []string{"general", "help", "random"}, names)
}

func TestChannelMembership(t *testing.T) {
	t.Parallel()

	t.Run("add is insert if absent", func(t *testing.T) {
		ch := newChannel(uuid.New(), "general", nil)
		require.Equal(t, Joined, ch.AddMember("alice"))
		require.Equal(t, AlreadyMember, ch.AddMember("alice"))
		require.True(t, ch.ContainsMember("alice"))
		require.Equal(t, []server.UserID{"alice"}, ch.Members())
	})

	t.Run("remove", func(t *testing.T) {
		ch := newChannel(uuid.New(), "general", []server.UserID{"alice"})
		require.True(t, ch.RemoveMember("alice"))
		require.False(t, ch.RemoveMember("alice"))
		require.False(t, ch.ContainsMember("alice"))
	})

	t.Run("members is a snapshot", func(t *testing.T) {
		ch := newChannel(uuid.New(), "general", []server.UserID{"alice"})
		members := ch.Members()
		ch.AddMember("bob")
		require.Len(t, members, 1)
		require.Equal(t, 2, ch.Len())
	})

	t.Run("concurrent adds of one user join once", func(t *testing.T) {
		ch := newChannel(uuid.New(), "general", nil)

		const n = 32
		results := make([]JoinResult, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = ch.AddMember("alice")
			}()
		}
		wg.Wait()

		joined := 0
		for _, r := range results {
			if r == Joined {
				joined++
			}
		}
		require.Equal(t, 1, joined)
		require.Equal(t, []server.UserID{"alice"}, ch.Members())
	})
}

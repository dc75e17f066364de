package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	server "github.com/charadev96/gochan/internal/server/domain"
)

func TestMailbox(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("drain empties queue", func(t *testing.T) {
		m := NewMailbox(0)
		require.Equal(t, DefaultMailboxLimit, m.Limit())

		m.Notify(ctx, server.Notice{Recipient: "alice", Kind: server.NoticeInvited, Channel: "general"})
		require.Equal(t, 1, m.Pending("alice"))

		notices := m.Drain("alice")
		require.Len(t, notices, 1)
		require.False(t, notices[0].At.IsZero())
		require.Empty(t, m.Drain("alice"))
	})

	t.Run("drops oldest beyond limit", func(t *testing.T) {
		m := NewMailbox(2)
		for _, ch := range []string{"a", "b", "c"} {
			m.Notify(ctx, server.Notice{Recipient: "alice", Channel: ch})
		}
		notices := m.Drain("alice")
		require.Len(t, notices, 2)
		require.Equal(t, "b", notices[0].Channel)
		require.Equal(t, "c", notices[1].Channel)
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var m Mailbox
		require.Equal(t, 0, m.Pending("alice"))
		require.Empty(t, m.Drain("alice"))

		for i := 0; i < DefaultMailboxLimit+1; i++ {
			m.Notify(ctx, server.Notice{Recipient: "alice", Kind: server.NoticeJoined})
		}
		require.Equal(t, DefaultMailboxLimit, m.Pending("alice"))
	})
}

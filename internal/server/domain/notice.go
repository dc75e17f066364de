package domain

import (
	"context"
	"time"
)

type NoticeKind string

const (
	NoticeJoined         NoticeKind = "joined"
	NoticeDefaultSet     NoticeKind = "default_set"
	NoticeLeft           NoticeKind = "left"
	NoticeInvited        NoticeKind = "invited"
	NoticeInviteSent     NoticeKind = "invite_sent"
	NoticeInviteAccepted NoticeKind = "invite_accepted"
	NoticeInviteDenied   NoticeKind = "invite_denied"
)

// Notice is a structured notification. Rendering it into text is left to
// the client.
type Notice struct {
	Recipient UserID
	Kind      NoticeKind
	Channel   string
	Actor     UserID
	At        time.Time
}

// Notifier delivers notices to users other than the one issuing a command.
// Delivery to an offline user is not an error.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

package domain

import (
	"time"
)

// PendingInvite is an offer for Invitee to join Channel, issued by Inviter.
// At most one exists per invitee.
type PendingInvite struct {
	Invitee   UserID
	Channel   string
	Inviter   UserID
	CreatedAt time.Time
}

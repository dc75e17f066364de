package domain

import (
	"errors"
	"fmt"

	shared "github.com/charadev96/gochan/internal/shared/domain"
)

// Outcome is the result kind of a membership operation. Every kind other
// than OutcomeSuccess is an expected, user-facing condition.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotInvited
	OutcomeChannelNotFound
	OutcomeAlreadyJoined
	OutcomeNotMember
)

var (
	ErrNotInvited      = errors.New("no pending invite")
	ErrChannelNotFound = fmt.Errorf("channel %w", shared.ErrNotExist)
	ErrAlreadyJoined   = errors.New("already a member of the channel")
	ErrNotMember       = errors.New("not a member of the channel")
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:         "success",
	OutcomeNotInvited:      "not_invited",
	OutcomeChannelNotFound: "channel_not_found",
	OutcomeAlreadyJoined:   "already_joined",
	OutcomeNotMember:       "not_member",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Err returns the sentinel error for o, or nil on success.
func (o Outcome) Err() error {
	switch o {
	case OutcomeNotInvited:
		return ErrNotInvited
	case OutcomeChannelNotFound:
		return ErrChannelNotFound
	case OutcomeAlreadyJoined:
		return ErrAlreadyJoined
	case OutcomeNotMember:
		return ErrNotMember
	}
	return nil
}

func ParseOutcome(name string) (Outcome, bool) {
	for o, n := range outcomeNames {
		if n == name {
			return o, true
		}
	}
	return 0, false
}

// Result carries an outcome and the parameters a caller needs to render it.
// Inviter and Invitee are only known when an invite was involved.
type Result struct {
	Outcome Outcome
	User    UserID
	Channel string
	Inviter UserID
	Invitee UserID

	// Replaced is the invite overwritten by Invite, if any.
	Replaced *PendingInvite

	// Notices addressed to User. Notices for other users go through the
	// Notifier.
	Notices []Notice
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

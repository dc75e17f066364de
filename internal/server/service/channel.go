package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/server/registry"
	shared "github.com/charadev96/gochan/internal/shared/domain"
	"github.com/charadev96/gochan/internal/shared/log"
)

// ChannelService runs the invite and membership workflows against the
// in-memory registries. Storage, when configured, is written through after
// the registries have changed.
type ChannelService struct {
	Invites  *registry.InviteRegistry
	Channels *registry.ChannelRegistry
	Defaults *registry.DefaultChannelAssigner
	Notifier server.Notifier

	StoredChannels server.ChannelRepository
	StoredDefaults server.DefaultChannelRepository
	TXRunner       shared.TransactionRunner

	Logger *zerolog.Logger
	Now    func() time.Time

	// storeMu orders registry changes that are written through, so storage
	// sees them in the same order as the registries do.
	storeMu sync.Mutex
}

func NewChannelService() *ChannelService {
	return &ChannelService{
		Invites:  registry.NewInviteRegistry(),
		Channels: registry.NewChannelRegistry(),
		Defaults: registry.NewDefaultChannelAssigner(),
	}
}

// Invite records a pending invite from inviter to invitee. The inviter must
// be a member of the channel and the invitee must not be. Any earlier
// invite for the invitee is replaced.
func (s *ChannelService) Invite(ctx context.Context, inviter, invitee server.UserID, channel string) (server.Result, error) {
	res := server.Result{User: inviter, Channel: channel, Inviter: inviter, Invitee: invitee}
	if err := inviter.Validate(); err != nil {
		return res, err
	}
	if err := invitee.Validate(); err != nil {
		return res, err
	}
	logger := s.logger().With().
		Str("inviter", inviter.String()).
		Str("invitee", invitee.String()).
		Str("channel", channel).
		Logger()

	ch, ok := s.Channels.Resolve(channel)
	switch {
	case !ok:
		res.Outcome = server.OutcomeChannelNotFound
	case !ch.ContainsMember(inviter):
		res.Outcome = server.OutcomeNotMember
	case ch.ContainsMember(invitee):
		res.Outcome = server.OutcomeAlreadyJoined
	}
	if !res.OK() {
		logger.Debug().
			Stringer("outcome", res.Outcome).
			Msg("invite rejected")
		return res, nil
	}

	now := s.now()
	prev, replaced := s.Invites.Put(server.PendingInvite{
		Invitee:   invitee,
		Channel:   ch.Name(),
		Inviter:   inviter,
		CreatedAt: now,
	})
	if replaced {
		res.Replaced = &prev
		logger.Debug().
			Str("previous_channel", prev.Channel).
			Str("previous_inviter", prev.Inviter.String()).
			Msg("replaced pending invite")
	}

	res.Notices = []server.Notice{{
		Recipient: inviter,
		Kind:      server.NoticeInviteSent,
		Channel:   ch.Name(),
		Actor:     invitee,
		At:        now,
	}}
	s.notify(ctx, server.Notice{
		Recipient: invitee,
		Kind:      server.NoticeInvited,
		Channel:   ch.Name(),
		Actor:     inviter,
		At:        now,
	})

	logger.Info().Msg("invite issued")
	return res, nil
}

// Accept consumes the pending invite of invitee and joins the invited
// channel. The invite is gone afterwards whatever the outcome, so a failed
// accept needs a fresh invite to be retried.
//
// The returned error is only set for invalid input or when writing the join
// to storage fails; the in-memory outcome stands either way.
func (s *ChannelService) Accept(ctx context.Context, invitee server.UserID) (server.Result, error) {
	res := server.Result{User: invitee, Invitee: invitee}
	if err := invitee.Validate(); err != nil {
		return res, err
	}
	logger := s.logger().With().
		Str("user", invitee.String()).
		Logger()

	inv, ok := s.Invites.Take(invitee)
	if !ok {
		res.Outcome = server.OutcomeNotInvited
		logger.Debug().Msg("accept without pending invite")
		return res, nil
	}
	res.Channel = inv.Channel
	res.Inviter = inv.Inviter

	unlock := s.lockStore()
	defer unlock()

	logger = logger.With().
		Str("channel", inv.Channel).
		Str("inviter", inv.Inviter.String()).
		Logger()

	ch, ok := s.Channels.Resolve(inv.Channel)
	if !ok {
		res.Outcome = server.OutcomeChannelNotFound
		logger.Info().Msg("discarded invite to missing channel")
		return res, nil
	}

	switch ch.AddMember(invitee) {
	case registry.AlreadyMember:
		res.Outcome = server.OutcomeAlreadyJoined
		logger.Info().Msg("discarded invite, already a member")
		return res, nil
	case registry.Closed:
		res.Outcome = server.OutcomeChannelNotFound
		logger.Info().Msg("discarded invite, channel deleted while joining")
		return res, nil
	}

	s.Defaults.SetDefault(invitee, ch.Name())

	now := s.now()
	res.Outcome = server.OutcomeSuccess
	res.Notices = []server.Notice{
		{Recipient: invitee, Kind: server.NoticeJoined, Channel: ch.Name(), At: now},
		{Recipient: invitee, Kind: server.NoticeDefaultSet, Channel: ch.Name(), At: now},
	}
	if inv.Inviter != invitee {
		s.notify(ctx, server.Notice{
			Recipient: inv.Inviter,
			Kind:      server.NoticeInviteAccepted,
			Channel:   ch.Name(),
			Actor:     invitee,
			At:        now,
		})
	}
	logger.Info().Msg("invite accepted")

	if err := s.persistJoin(ctx, ch, invitee); err != nil {
		logger.Error().Err(err).Msg("failed to store join")
		return res, err
	}
	return res, nil
}

// Deny discards the pending invite of invitee and tells the inviter.
func (s *ChannelService) Deny(ctx context.Context, invitee server.UserID) (server.Result, error) {
	res := server.Result{User: invitee, Invitee: invitee}
	if err := invitee.Validate(); err != nil {
		return res, err
	}

	inv, ok := s.Invites.Take(invitee)
	if !ok {
		res.Outcome = server.OutcomeNotInvited
		return res, nil
	}
	res.Outcome = server.OutcomeSuccess
	res.Channel = inv.Channel
	res.Inviter = inv.Inviter

	s.notify(ctx, server.Notice{
		Recipient: inv.Inviter,
		Kind:      server.NoticeInviteDenied,
		Channel:   inv.Channel,
		Actor:     invitee,
		At:        s.now(),
	})

	s.logger().Info().
		Str("user", invitee.String()).
		Str("channel", inv.Channel).
		Str("inviter", inv.Inviter.String()).
		Msg("invite denied")
	return res, nil
}

// Leave removes user from channel. A default binding pointing at the
// channel is cleared as well.
func (s *ChannelService) Leave(ctx context.Context, user server.UserID, channel string) (server.Result, error) {
	res := server.Result{User: user, Channel: channel}
	if err := user.Validate(); err != nil {
		return res, err
	}
	logger := s.logger().With().
		Str("user", user.String()).
		Str("channel", channel).
		Logger()

	unlock := s.lockStore()
	defer unlock()

	ch, ok := s.Channels.Resolve(channel)
	if !ok {
		res.Outcome = server.OutcomeChannelNotFound
		return res, nil
	}
	if !ch.RemoveMember(user) {
		res.Outcome = server.OutcomeNotMember
		return res, nil
	}
	cleared := s.Defaults.ClearIf(user, ch.Name())

	res.Outcome = server.OutcomeSuccess
	res.Notices = []server.Notice{{
		Recipient: user,
		Kind:      server.NoticeLeft,
		Channel:   ch.Name(),
		At:        s.now(),
	}}
	logger.Info().
		Bool("default_cleared", cleared).
		Msg("left channel")

	if err := s.persistLeave(ctx, ch, user, cleared); err != nil {
		logger.Error().Err(err).Msg("failed to store leave")
		return res, err
	}
	return res, nil
}

func (s *ChannelService) DefaultChannel(user server.UserID) (string, bool) {
	return s.Defaults.GetDefault(user)
}

// PendingInvites lists invites issued by inviter, or every pending invite
// when inviter is empty.
func (s *ChannelService) PendingInvites(inviter server.UserID) []server.PendingInvite {
	if inviter == "" {
		return s.Invites.List()
	}
	return s.Invites.ListByInviter(inviter)
}

func (s *ChannelService) logger() *zerolog.Logger {
	return log.OrNop(s.Logger)
}

func (s *ChannelService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ChannelService) notify(ctx context.Context, n server.Notice) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(ctx, n)
}

// lockStore holds storeMu until the returned func is called. Without storage
// there is nothing to order and the registries' own locks suffice.
func (s *ChannelService) lockStore() func() {
	if s.StoredChannels == nil {
		return func() {}
	}
	s.storeMu.Lock()
	return s.storeMu.Unlock
}

func (s *ChannelService) persistJoin(ctx context.Context, ch *registry.Channel, user server.UserID) error {
	if s.StoredChannels == nil {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.StoredChannels.AddMember(ctx, ch.ID(), user); err != nil {
			return err
		}
		if s.StoredDefaults != nil {
			return s.StoredDefaults.Set(ctx, user, ch.Name())
		}
		return nil
	})
}

func (s *ChannelService) persistLeave(ctx context.Context, ch *registry.Channel, user server.UserID, cleared bool) error {
	if s.StoredChannels == nil {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.StoredChannels.RemoveMember(ctx, ch.ID(), user); err != nil {
			return err
		}
		if cleared && s.StoredDefaults != nil {
			return s.StoredDefaults.Delete(ctx, user)
		}
		return nil
	})
}

func (s *ChannelService) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	if s.TXRunner != nil {
		err = s.TXRunner.Exec(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to write through to storage: %w", err)
	}
	return nil
}

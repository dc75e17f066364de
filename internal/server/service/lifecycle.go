package service

import (
	"context"
	"fmt"

	server "github.com/charadev96/gochan/internal/server/domain"
)

// CreateChannel registers a new channel with the given initial members. If
// the channel cannot be stored it is unregistered again.
func (s *ChannelService) CreateChannel(ctx context.Context, name string, members ...server.UserID) (server.ChannelInfo, error) {
	for _, m := range members {
		if err := m.Validate(); err != nil {
			return server.ChannelInfo{}, err
		}
	}
	unlock := s.lockStore()
	defer unlock()

	ch, err := s.Channels.Create(name)
	if err != nil {
		return server.ChannelInfo{}, err
	}
	for _, m := range members {
		ch.AddMember(m)
	}
	info := ch.Info()

	if s.StoredChannels != nil {
		err := s.inTx(ctx, func(ctx context.Context) error {
			return s.StoredChannels.Save(ctx, info)
		})
		if err != nil {
			s.Channels.Delete(name)
			return server.ChannelInfo{}, fmt.Errorf("failed to create channel '%s': %w", name, err)
		}
	}

	s.logger().Info().
		Str("channel", name).
		Str("id", info.ID.String()).
		Int("members", len(info.Members)).
		Msg("created channel")
	return info, nil
}

// DeleteChannel unregisters a channel. Pending invites that name it are left
// in place and fail with channel not found when accepted.
func (s *ChannelService) DeleteChannel(ctx context.Context, name string) error {
	unlock := s.lockStore()
	defer unlock()

	ch, ok := s.Channels.Delete(name)
	if !ok {
		return fmt.Errorf("failed to delete channel '%s': %w", name, server.ErrChannelNotFound)
	}
	s.logger().Info().
		Str("channel", name).
		Str("id", ch.ID().String()).
		Msg("deleted channel")

	if s.StoredChannels != nil {
		if err := s.StoredChannels.Delete(ctx, ch.ID()); err != nil {
			return fmt.Errorf("failed to delete stored channel '%s': %w", name, err)
		}
	}
	return nil
}

func (s *ChannelService) Channel(name string) (server.ChannelInfo, error) {
	ch, ok := s.Channels.Resolve(name)
	if !ok {
		return server.ChannelInfo{}, fmt.Errorf("failed to get channel '%s': %w", name, server.ErrChannelNotFound)
	}
	return ch.Info(), nil
}

func (s *ChannelService) ListChannels() []server.ChannelInfo {
	channels := s.Channels.List()
	infos := make([]server.ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		infos = append(infos, ch.Info())
	}
	return infos
}

// Restore loads channels and default bindings from storage into the
// registries. It is meant to run once before serving requests.
func (s *ChannelService) Restore(ctx context.Context) error {
	if s.StoredChannels == nil {
		return nil
	}
	channels, err := s.StoredChannels.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}
	for _, info := range channels {
		if _, err := s.Channels.Restore(info.ID, info.Name, info.Members); err != nil {
			return err
		}
	}

	bindings := map[server.UserID]string{}
	if s.StoredDefaults != nil {
		bindings, err = s.StoredDefaults.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to load default channels: %w", err)
		}
		s.Defaults.Restore(bindings)
	}

	s.logger().Info().
		Int("channels", len(channels)).
		Int("defaults", len(bindings)).
		Msg("restored state from storage")
	return nil
}

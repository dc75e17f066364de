package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	shared "github.com/charadev96/gochan/internal/shared/domain"
)

var (
	ErrInvalidChannel = errors.New("channel name must not be empty")
	ErrChannelExists  = fmt.Errorf("channel %w", shared.ErrExist)
)

// ChannelInfo is a point-in-time copy of a channel.
type ChannelInfo struct {
	ID      uuid.UUID
	Name    string
	Members []UserID
}

type ChannelRepository interface {
	Save(ctx context.Context, ch ChannelInfo) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]ChannelInfo, error)
	AddMember(ctx context.Context, id uuid.UUID, user UserID) error
	RemoveMember(ctx context.Context, id uuid.UUID, user UserID) error
}

type DefaultChannelRepository interface {
	Set(ctx context.Context, user UserID, channel string) error
	Delete(ctx context.Context, user UserID) error
	List(ctx context.Context) (map[UserID]string, error)
}

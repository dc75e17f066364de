package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/shared/infra"
)

type BunChannelRepository struct {
	db *bun.DB
}

func NewBunChannelRepository(ctx context.Context, db *bun.DB) (*BunChannelRepository, error) {
	r := &BunChannelRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	for _, model := range []any{(*channel)(nil), (*channelMember)(nil)} {
		_, err := tx.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return r, fmt.Errorf("failed to create repository: %w", err)
		}
	}
	return r, nil
}

func (r *BunChannelRepository) Save(ctx context.Context, info server.ChannelInfo) error {
	tx := infra.ExtractTx(ctx, r.db)
	c := &channel{CreatedAt: time.Now()}
	copier.Copy(c, &info)
	_, err := tx.NewInsert().
		Model(c).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save channel: %w", err)
	}
	if len(info.Members) == 0 {
		return nil
	}

	members := make([]channelMember, 0, len(info.Members))
	for _, m := range info.Members {
		members = append(members, channelMember{
			ChannelID: info.ID,
			UserID:    string(m),
			JoinedAt:  c.CreatedAt,
		})
	}
	_, err = tx.NewInsert().
		Model(&members).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save channel members: %w", err)
	}
	return nil
}

func (r *BunChannelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewDelete().
		Model((*channelMember)(nil)).
		Where("channel_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete channel members: %w", err)
	}
	c := &channel{ID: id}
	_, err = tx.NewDelete().
		Model(c).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

func (r *BunChannelRepository) List(ctx context.Context) ([]server.ChannelInfo, error) {
	tx := infra.ExtractTx(ctx, r.db)
	var channels []channel
	err := tx.NewSelect().
		Model(&channels).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	var members []channelMember
	err = tx.NewSelect().
		Model(&members).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel members: %w", err)
	}

	byChannel := make(map[uuid.UUID][]server.UserID, len(channels))
	for _, m := range members {
		byChannel[m.ChannelID] = append(byChannel[m.ChannelID], server.UserID(m.UserID))
	}
	infos := make([]server.ChannelInfo, 0, len(channels))
	for _, c := range channels {
		info := server.ChannelInfo{}
		copier.Copy(&info, &c)
		info.Members = byChannel[c.ID]
		infos = append(infos, info)
	}
	return infos, nil
}

func (r *BunChannelRepository) AddMember(ctx context.Context, id uuid.UUID, user server.UserID) error {
	tx := infra.ExtractTx(ctx, r.db)
	m := &channelMember{
		ChannelID: id,
		UserID:    string(user),
		JoinedAt:  time.Now(),
	}
	_, err := tx.NewInsert().
		Model(m).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add channel member: %w", err)
	}
	return nil
}

func (r *BunChannelRepository) RemoveMember(ctx context.Context, id uuid.UUID, user server.UserID) error {
	tx := infra.ExtractTx(ctx, r.db)
	m := &channelMember{ChannelID: id, UserID: string(user)}
	_, err := tx.NewDelete().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove channel member: %w", err)
	}
	return nil
}

type channel struct {
	bun.BaseModel `bun:"table:channels"`

	ID        uuid.UUID `bun:",pk"`
	Name      string    `bun:",unique,notnull"`
	CreatedAt time.Time
}

type channelMember struct {
	bun.BaseModel `bun:"table:channel_members"`

	ChannelID uuid.UUID `bun:",pk"`
	UserID    string    `bun:",pk"`
	JoinedAt  time.Time
}

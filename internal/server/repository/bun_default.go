package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/shared/infra"
)

type BunDefaultChannelRepository struct {
	db *bun.DB
}

func NewBunDefaultChannelRepository(ctx context.Context, db *bun.DB) (*BunDefaultChannelRepository, error) {
	r := &BunDefaultChannelRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*defaultChannel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	return r, nil
}

func (r *BunDefaultChannelRepository) Set(ctx context.Context, user server.UserID, channel string) error {
	tx := infra.ExtractTx(ctx, r.db)
	d := &defaultChannel{
		UserID:    string(user),
		Channel:   channel,
		UpdatedAt: time.Now(),
	}
	_, err := tx.NewInsert().
		Model(d).
		Replace().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set default channel: %w", err)
	}
	return nil
}

func (r *BunDefaultChannelRepository) Delete(ctx context.Context, user server.UserID) error {
	tx := infra.ExtractTx(ctx, r.db)
	d := &defaultChannel{UserID: string(user)}
	_, err := tx.NewDelete().
		Model(d).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete default channel: %w", err)
	}
	return nil
}

func (r *BunDefaultChannelRepository) List(ctx context.Context) (map[server.UserID]string, error) {
	tx := infra.ExtractTx(ctx, r.db)
	var rows []defaultChannel
	if err := tx.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list default channels: %w", err)
	}
	bindings := make(map[server.UserID]string, len(rows))
	for _, d := range rows {
		bindings[server.UserID(d.UserID)] = d.Channel
	}
	return bindings, nil
}

type defaultChannel struct {
	bun.BaseModel `bun:"table:default_channels"`

	UserID    string `bun:",pk"`
	Channel   string `bun:",notnull"`
	UpdatedAt time.Time
}

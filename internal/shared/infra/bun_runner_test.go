package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testRow struct {
	bun.BaseModel `bun:"table:test_rows"`

	ID int64 `bun:",pk"`
}

func TestBunTransactionRunner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.NewCreateTable().Model((*testRow)(nil)).Exec(ctx)
	require.NoError(t, err)

	runner := NewBunTransactionRunner(db)
	insert := func(ctx context.Context, id int64) error {
		_, err := ExtractTx(ctx, db).NewInsert().Model(&testRow{ID: id}).Exec(ctx)
		return err
	}
	count := func() int {
		n, err := db.NewSelect().Model((*testRow)(nil)).Count(ctx)
		require.NoError(t, err)
		return n
	}

	require.NoError(t, runner.Exec(ctx, func(ctx context.Context) error {
		return insert(ctx, 1)
	}))
	require.Equal(t, 1, count())

	boom := errors.New("boom")
	err = runner.Exec(ctx, func(ctx context.Context) error {
		require.NoError(t, insert(ctx, 2))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, count())

	require.NoError(t, runner.Exec(ctx, func(ctx context.Context) error {
		outer := ExtractTx(ctx, nil)
		return runner.Exec(ctx, func(ctx context.Context) error {
			require.Equal(t, outer, ExtractTx(ctx, nil))
			return insert(ctx, 3)
		})
	}))
	require.Equal(t, 2, count())
}

package infra

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type contextKey struct{}

var txContextKey = &contextKey{}

// OpenSQLite opens a bun database backed by sqlite. An empty path opens a
// private in-memory database.
func OpenSQLite(path string) (*bun.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	if path != "" {
		dsn = "file:" + path
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == "" {
		// the database is dropped once its last connection closes
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// InjectTx stores db in ctx so repositories called further down share it.
func InjectTx(ctx context.Context, db bun.IDB) context.Context {
	return context.WithValue(ctx, txContextKey, db)
}

// ExtractTx returns the transaction stored in ctx, or fallback when the
// call is not part of one.
func ExtractTx(ctx context.Context, fallback bun.IDB) bun.IDB {
	if db, ok := ctx.Value(txContextKey).(bun.IDB); ok {
		return db
	}
	return fallback
}

// BunTransactionRunner runs write-through steps in one sqlite transaction.
type BunTransactionRunner struct {
	db *bun.DB
}

func NewBunTransactionRunner(db *bun.DB) *BunTransactionRunner {
	return &BunTransactionRunner{db: db}
}

// Exec runs fn inside a transaction. A call nested in an outer Exec joins
// the outer transaction instead of opening its own.
func (r *BunTransactionRunner) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txContextKey).(bun.IDB); nested {
		return fn(ctx)
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(InjectTx(ctx, tx))
	})
	if err != nil {
		return fmt.Errorf("transaction rolled back: %w", err)
	}
	return nil
}

package domain

import (
	"context"
)

// TransactionRunner runs fn so that every repository call made with the
// context it receives joins the same transaction.
type TransactionRunner interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

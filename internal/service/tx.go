package service

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is the slice of *pgxpool.Pool the services depend on.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// internal/repository/postgres/db.go
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool     *pgxpool.Pool
	isoLevel pgx.TxIsoLevel
}

type Option func(*DB)

// WithIsolation sets the isolation level used by BeginTx.
func WithIsolation(level pgx.TxIsoLevel) Option {
	return func(db *DB) {
		db.isoLevel = level
	}
}

func NewDB(pool *pgxpool.Pool, opts ...Option) *DB {
	db := &DB{pool: pool, isoLevel: pgx.ReadCommitted}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: db.isoLevel})
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

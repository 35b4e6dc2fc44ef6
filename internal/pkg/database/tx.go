package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Runner runs a function inside a single database transaction. Every mutation
// of a balance together with its bill entry and order/transfer status change
// goes through one WithinTx call — never split across transactions.
type Runner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SQLRunner is the Postgres-backed Runner.
type SQLRunner struct {
	db *sqlx.DB
}

func NewRunner(db *sqlx.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

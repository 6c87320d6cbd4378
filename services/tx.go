package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// txRunner runs fn inside one database transaction.
type txRunner func(ctx context.Context, fn func(tx *sql.Tx) error) error

// withTx runs fn in a database transaction. The transaction is rolled back when
// fn returns an error or panics and committed otherwise.
func withTx(ctx context.Context, db *sql.DB, logger *slog.Logger, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.ErrorContext(ctx, "failed to rollback transaction", slog.Any("error", rbErr))
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

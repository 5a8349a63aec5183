package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// TxManager is the unit-of-work boundary. WithinTx opens one storage
// transaction, threads it through the context, and commits it only when
// fn returns nil. Repositories pick the transactional querier out of
// the context via querierFrom, so every repository call inside fn joins
// the same transaction and every row lock taken in it is held until
// commit or rollback.
type TxManager struct {
	db *DB
}

func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested call: join the ambient transaction.
	if _, ok := ctx.Value(txKey{}).(*txQuerier); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, txKey{}, &txQuerier{tx: tx})

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		if isLockFailure(err) {
			return fmt.Errorf("row lock unavailable (retryable): %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querierFrom returns the transactional querier when ctx carries one,
// the plain connection pool otherwise.
func querierFrom(ctx context.Context, db *DB) Querier {
	if q, ok := ctx.Value(txKey{}).(*txQuerier); ok {
		return q
	}
	return db
}

// txQuerier gives *sql.Tx the same traced interface as *DB.
type txQuerier struct {
	tx *sql.Tx
}

func (q *txQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := startSpan(ctx, "db.tx.Query", query)
	defer span.End()

	rows, err := q.tx.QueryContext(ctx, query, args...)
	recordErr(span, err)
	return rows, err
}

func (q *txQuerier) QueryRowContext(ctx context.Context, query string, args ...any) RowScanner {
	ctx, span := startSpan(ctx, "db.tx.QueryRow", query)
	return &tracedRow{row: q.tx.QueryRowContext(ctx, query, args...), span: span}
}

func (q *txQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := startSpan(ctx, "db.tx.Exec", query)
	defer span.End()

	result, err := q.tx.ExecContext(ctx, query, args...)
	recordErr(span, err)
	return result, err
}

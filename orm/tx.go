package orm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Tx wraps *sqlx.Tx with OpenTelemetry instrumentation.
//
// A Tx created by Tx.Transaction is a savepoint: its Commit releases the
// savepoint and its Rollback rolls back to it, leaving the enclosing
// transaction open.
type Tx struct {
	instrument

	tx *sqlx.Tx

	// ctx parents the COMMIT and ROLLBACK spans, which have no context of
	// their own.
	ctx       context.Context
	depth     int
	savepoint string
}

// ExecContext executes a query without returning rows.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, call := tx.startQuery(ctx, spanName(query), query)
	result, err := tx.tx.ExecContext(ctx, query, args...)
	tx.finish(ctx, call, err)
	return result, err
}

// QueryContext executes a query and returns rows.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, call := tx.startQuery(ctx, spanName(query), query)
	rows, err := tx.tx.QueryContext(ctx, query, args...)
	tx.finish(ctx, call, err)
	return rows, err
}

// QueryxContext executes a query and returns sqlx.Rows.
func (tx *Tx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	ctx, call := tx.startQuery(ctx, sqlxSpanName("sqlx.Tx.Queryx", query), query)
	rows, err := tx.tx.QueryxContext(ctx, query, args...)
	tx.finish(ctx, call, err)
	return rows, err
}

// QueryRowContext executes a query and returns a single row.
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, call := tx.startQuery(ctx, spanName(query), query)
	row := tx.tx.QueryRowContext(ctx, query, args...)
	tx.finish(ctx, call, row.Err())
	return row
}

// QueryRowxContext executes a query and returns a single sqlx.Row.
func (tx *Tx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	ctx, call := tx.startQuery(ctx, sqlxSpanName("sqlx.Tx.QueryRowx", query), query)
	row := tx.tx.QueryRowxContext(ctx, query, args...)
	tx.finish(ctx, call, row.Err())
	return row
}

// GetContext executes a query that returns at most one row and scans into dest.
func (tx *Tx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, call := tx.startQuery(ctx, sqlxSpanName("sqlx.Tx.Get", query), query)
	err := tx.tx.GetContext(ctx, dest, query, args...)
	tx.finish(ctx, call, err)
	return err
}

// SelectContext executes a query and scans all results into dest.
func (tx *Tx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, call := tx.startQuery(ctx, sqlxSpanName("sqlx.Tx.Select", query), query)
	err := tx.tx.SelectContext(ctx, dest, query, args...)
	tx.finish(ctx, call, err)
	return err
}

// NamedExecContext executes a named query within the transaction.
func (tx *Tx) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	ctx, call := tx.startQuery(ctx, sqlxSpanName("sqlx.Tx.NamedExec", query), query)
	result, err := tx.tx.NamedExecContext(ctx, query, arg)
	tx.finish(ctx, call, err)
	return result, err
}

// NamedQueryContext executes a named query within the transaction.
func (tx *Tx) NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error) {
	ctx, call := tx.startQuery(ctx, sqlxSpanName("sqlx.Tx.NamedQuery", query), query)
	rows, err := sqlx.NamedQueryContext(ctx, tx.tx, query, arg)
	tx.finish(ctx, call, err)
	return rows, err
}

// PreparexContext prepares a statement bound to the transaction.
func (tx *Tx) PreparexContext(ctx context.Context, query string) (*Stmt, error) {
	ctx, call := tx.startPrepare(ctx, "sqlx.Tx.Preparex", query)
	stmt, err := tx.tx.PreparexContext(ctx, query)
	tx.finish(ctx, call, err)
	if err != nil {
		return nil, err
	}

	return &Stmt{stmt: stmt, instrument: tx.instrument, query: query}, nil
}

// PrepareNamedContext prepares a named statement bound to the transaction.
func (tx *Tx) PrepareNamedContext(ctx context.Context, query string) (*NamedStmt, error) {
	ctx, call := tx.startPrepare(ctx, "sqlx.Tx.PrepareNamed", query)
	stmt, err := tx.tx.PrepareNamedContext(ctx, query)
	tx.finish(ctx, call, err)
	if err != nil {
		return nil, err
	}

	return &NamedStmt{stmt: stmt, instrument: tx.instrument, query: query}, nil
}

// DriverName returns the driver name.
func (tx *Tx) DriverName() string {
	return tx.tx.DriverName()
}

// Rebind transforms a query from QUESTION to the driver's bindvar type.
func (tx *Tx) Rebind(query string) string {
	return tx.tx.Rebind(query)
}

// BindNamed binds a named query to a map or struct.
func (tx *Tx) BindNamed(query string, arg any) (string, []any, error) {
	return tx.tx.BindNamed(query, arg)
}

// BatchExecContext runs one or more statements that take no arguments.
func (tx *Tx) BatchExecContext(ctx context.Context, query string) error {
	ctx, call := tx.startBatch(ctx, query)
	_, err := tx.tx.ExecContext(ctx, query)
	tx.finish(ctx, call, err)
	return err
}

// Commit commits the transaction, or releases the savepoint of a nested
// transaction.
func (tx *Tx) Commit() error {
	if tx.savepoint != "" {
		return tx.savepointExec("RELEASE SAVEPOINT")
	}

	ctx, call := tx.startOp(tx.ctx, "COMMIT")
	err := tx.tx.Commit()
	tx.finish(ctx, call, err)
	return err
}

// Rollback aborts the transaction, or rolls back to the savepoint of a
// nested transaction.
func (tx *Tx) Rollback() error {
	if tx.savepoint != "" {
		return tx.savepointExec("ROLLBACK TO SAVEPOINT")
	}

	ctx, call := tx.startOp(tx.ctx, "ROLLBACK")
	err := tx.tx.Rollback()
	tx.finish(ctx, call, err)
	return err
}

// Transaction runs fn inside a savepoint of this transaction. On success
// the savepoint is released; on error or panic the work done by fn is
// rolled back and the enclosing transaction stays usable.
func (tx *Tx) Transaction(ctx context.Context, fn func(*Tx) error) error {
	nested := &Tx{
		instrument: tx.instrument,
		tx:         tx.tx,
		ctx:        ctx,
		depth:      tx.depth + 1,
		savepoint:  fmt.Sprintf("sentinel_savepoint_%d", tx.depth+1),
	}

	if err := nested.savepointExec("SAVEPOINT"); err != nil {
		return err
	}
	return nested.run(fn)
}

// savepointExec issues a savepoint statement for this (nested) transaction.
func (tx *Tx) savepointExec(operation string) error {
	ctx, call := tx.startOp(tx.ctx, operation)
	_, err := tx.tx.ExecContext(ctx, operation+" "+tx.savepoint)
	tx.finish(ctx, call, err)
	return err
}

// run commits after fn succeeds and rolls back when it fails or panics.
func (tx *Tx) run(fn func(*Tx) error) error {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tx.cfg.Logger.Warn().
				Err(rbErr).
				AnErr("cause", err).
				Msg("failed to roll back transaction")
		}
		return err
	}

	return tx.Commit()
}

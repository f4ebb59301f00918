package orm

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Stmt wraps *sqlx.Stmt with OpenTelemetry instrumentation. Each execution
// gets its own span, named after the prepared query.
type Stmt struct {
	instrument

	stmt  *sqlx.Stmt
	query string
}

// ExecContext executes the prepared statement.
func (s *Stmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	ctx, call := s.startQuery(ctx, spanName(s.query), s.query)
	result, err := s.stmt.ExecContext(ctx, args...)
	s.finish(ctx, call, err)
	return result, err
}

// QueryContext executes the prepared statement and returns rows.
func (s *Stmt) QueryContext(ctx context.Context, args ...any) (*sql.Rows, error) {
	ctx, call := s.startQuery(ctx, spanName(s.query), s.query)
	rows, err := s.stmt.QueryContext(ctx, args...)
	s.finish(ctx, call, err)
	return rows, err
}

// QueryRowContext executes the prepared statement and returns a single row.
func (s *Stmt) QueryRowContext(ctx context.Context, args ...any) *sql.Row {
	ctx, call := s.startQuery(ctx, spanName(s.query), s.query)
	row := s.stmt.QueryRowContext(ctx, args...)
	s.finish(ctx, call, row.Err())
	return row
}

// QueryxContext executes the prepared statement and returns sqlx.Rows.
func (s *Stmt) QueryxContext(ctx context.Context, args ...any) (*sqlx.Rows, error) {
	ctx, call := s.startQuery(ctx, sqlxSpanName("sqlx.Stmt.Queryx", s.query), s.query)
	rows, err := s.stmt.QueryxContext(ctx, args...)
	s.finish(ctx, call, err)
	return rows, err
}

// QueryRowxContext executes the prepared statement and returns sqlx.Row.
func (s *Stmt) QueryRowxContext(ctx context.Context, args ...any) *sqlx.Row {
	ctx, call := s.startQuery(ctx, sqlxSpanName("sqlx.Stmt.QueryRowx", s.query), s.query)
	row := s.stmt.QueryRowxContext(ctx, args...)
	s.finish(ctx, call, row.Err())
	return row
}

// GetContext executes the prepared statement for a single row.
func (s *Stmt) GetContext(ctx context.Context, dest any, args ...any) error {
	ctx, call := s.startQuery(ctx, sqlxSpanName("sqlx.Stmt.Get", s.query), s.query)
	err := s.stmt.GetContext(ctx, dest, args...)
	s.finish(ctx, call, err)
	return err
}

// SelectContext executes the prepared statement and scans results into dest.
func (s *Stmt) SelectContext(ctx context.Context, dest any, args ...any) error {
	ctx, call := s.startQuery(ctx, sqlxSpanName("sqlx.Stmt.Select", s.query), s.query)
	err := s.stmt.SelectContext(ctx, dest, args...)
	s.finish(ctx, call, err)
	return err
}

// Unsafe returns a version of Stmt that silently ignores missing destination fields.
func (s *Stmt) Unsafe() *Stmt {
	return &Stmt{instrument: s.instrument, stmt: s.stmt.Unsafe(), query: s.query}
}

// Close closes the statement.
func (s *Stmt) Close() error {
	return s.stmt.Close()
}

// NamedStmt wraps *sqlx.NamedStmt with OpenTelemetry instrumentation.
type NamedStmt struct {
	instrument

	stmt  *sqlx.NamedStmt
	query string
}

// ExecContext executes the named statement.
func (ns *NamedStmt) ExecContext(ctx context.Context, arg any) (sql.Result, error) {
	ctx, call := ns.startQuery(ctx, spanName(ns.query), ns.query)
	result, err := ns.stmt.ExecContext(ctx, arg)
	ns.finish(ctx, call, err)
	return result, err
}

// QueryContext executes the named statement and returns rows.
func (ns *NamedStmt) QueryContext(ctx context.Context, arg any) (*sql.Rows, error) {
	ctx, call := ns.startQuery(ctx, spanName(ns.query), ns.query)
	rows, err := ns.stmt.QueryContext(ctx, arg)
	ns.finish(ctx, call, err)
	return rows, err
}

// QueryxContext executes the named statement and returns sqlx.Rows.
func (ns *NamedStmt) QueryxContext(ctx context.Context, arg any) (*sqlx.Rows, error) {
	ctx, call := ns.startQuery(ctx, sqlxSpanName("sqlx.NamedStmt.Queryx", ns.query), ns.query)
	rows, err := ns.stmt.QueryxContext(ctx, arg)
	ns.finish(ctx, call, err)
	return rows, err
}

// QueryRowxContext executes the named statement and returns sqlx.Row.
func (ns *NamedStmt) QueryRowxContext(ctx context.Context, arg any) *sqlx.Row {
	ctx, call := ns.startQuery(ctx, sqlxSpanName("sqlx.NamedStmt.QueryRowx", ns.query), ns.query)
	row := ns.stmt.QueryRowxContext(ctx, arg)
	ns.finish(ctx, call, row.Err())
	return row
}

// GetContext executes the named statement for a single row.
func (ns *NamedStmt) GetContext(ctx context.Context, dest any, arg any) error {
	ctx, call := ns.startQuery(ctx, sqlxSpanName("sqlx.NamedStmt.Get", ns.query), ns.query)
	err := ns.stmt.GetContext(ctx, dest, arg)
	ns.finish(ctx, call, err)
	return err
}

// SelectContext executes the named statement and scans results into dest.
func (ns *NamedStmt) SelectContext(ctx context.Context, dest any, arg any) error {
	ctx, call := ns.startQuery(ctx, sqlxSpanName("sqlx.NamedStmt.Select", ns.query), ns.query)
	err := ns.stmt.SelectContext(ctx, dest, arg)
	ns.finish(ctx, call, err)
	return err
}

// Unsafe returns a version of NamedStmt that silently ignores missing fields.
func (ns *NamedStmt) Unsafe() *NamedStmt {
	return &NamedStmt{instrument: ns.instrument, stmt: ns.stmt.Unsafe(), query: ns.query}
}

// Close closes the named statement.
func (ns *NamedStmt) Close() error {
	return ns.stmt.Close()
}

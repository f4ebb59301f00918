package orm

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Connection is the capability set shared by instrumented connections,
// transactions and pooled connections.
//
// It embeds sqlx.ExtContext, so generic sqlx helpers keep working on
// instrumented values unmodified:
//
//	var n int
//	err := sqlx.GetContext(ctx, conn, &n, "SELECT count(*) FROM users")
type Connection interface {
	sqlx.ExtContext

	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error)

	// BatchExecContext runs one or more ';'-separated statements that take
	// no arguments, e.g. schema setup.
	BatchExecContext(ctx context.Context, query string) error
}

// Compile-time interface checks.
var (
	_ Connection = (*Conn)(nil)
	_ Connection = (*Tx)(nil)
)

// rawConn is the uninstrumented *sqlx.Conn with the binder methods it
// lacks, so it satisfies sqlx.ExtContext for the sqlx.Named* helpers and
// backend inspection.
type rawConn struct {
	*sqlx.Conn
	driverName string
}

func (r rawConn) DriverName() string {
	return r.driverName
}

func (r rawConn) BindNamed(query string, arg any) (string, []any, error) {
	return sqlx.BindNamed(sqlx.BindType(r.driverName), query, arg)
}

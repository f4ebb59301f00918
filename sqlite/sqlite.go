// Package sqlite provides instrumented SQLite connections over the pure Go
// modernc.org/sqlite driver.
//
//	conn, err := sqlite.Establish(ctx, "file:app.db?_pragma=foreign_keys(1)")
//
// Every Conn owns its own connection, so ":memory:" gives each Conn a
// separate, private database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/kroma-labs/sentinel-orm/orm"
)

// System is the "db.system" value for SQLite.
const System = "sqlite"

// driverName is the name modernc.org/sqlite registers with database/sql.
const driverName = "sqlite"

const (
	versionQuery = `SELECT sqlite_version()`
	fileQuery    = `SELECT file FROM pragma_database_list WHERE name = 'main'`
)

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Backend connects through the modernc.org/sqlite driver.
var Backend orm.Backend = backend{}

// Compile-time interface checks.
var (
	_ orm.Inspector  = backend{}
	_ orm.ErrorCoder = backend{}
)

type backend struct{}

func (backend) System() string {
	return System
}

func (backend) DriverName() string {
	return driverName
}

// Inspect implements orm.Inspector. SQLite has no server address; the
// database is reported as the path of the main database file, which is
// empty for in-memory databases.
func (backend) Inspect(ctx context.Context, q sqlx.QueryerContext) (orm.ServerInfo, error) {
	var info orm.ServerInfo
	if err := q.QueryRowxContext(ctx, versionQuery).Scan(&info.Version); err != nil {
		return orm.ServerInfo{}, err
	}

	var file sql.NullString
	if err := q.QueryRowxContext(ctx, fileQuery).Scan(&file); err != nil {
		return orm.ServerInfo{}, err
	}
	info.Database = file.String

	return info, nil
}

// ErrorCode implements orm.ErrorCoder. It returns the extended SQLite
// result code, e.g. "2067" for a UNIQUE constraint violation.
func (backend) ErrorCode(err error) string {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return strconv.Itoa(sqliteErr.Code())
	}
	return ""
}

// ErrorCode returns the extended SQLite result code carried by err, or "" when there is none.
func ErrorCode(err error) string {
	return backend{}.ErrorCode(err)
}

// Conn is an instrumented SQLite connection.
type Conn struct {
	*orm.Conn
}

// Establish opens and wraps a SQLite connection.
func Establish(ctx context.Context, dsn string, opts ...orm.Option) (*Conn, error) {
	conn, err := orm.Establish(ctx, Backend, dsn, opts...)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn}, nil
}

// New wraps an existing handle opened with the sqlite driver and takes
// ownership of it.
func New(ctx context.Context, db *sql.DB, opts ...orm.Option) (*Conn, error) {
	conn, err := orm.New(ctx, Backend, db, opts...)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn}, nil
}

// Connect returns a constructor suitable for pool.New.
func Connect(dsn string, opts ...orm.Option) func(context.Context) (*Conn, error) {
	return func(ctx context.Context) (*Conn, error) {
		return Establish(ctx, dsn, opts...)
	}
}

// Package mysql provides instrumented MySQL connections over
// github.com/go-sql-driver/mysql.
//
//	conn, err := mysql.Establish(ctx,
//	    "user:pass@tcp(localhost:3306)/mydb?parseTime=true&multiStatements=true",
//	    orm.WithInstanceName("primary"),
//	)
//
// BatchExecContext with several ';'-separated statements requires
// multiStatements=true in the DSN.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/kroma-labs/sentinel-orm/orm"
)

// System is the "db.system" value for MySQL.
const System = "mysql"

// inspectQuery reads the server metadata attached to every span.
const inspectQuery = `SELECT @@hostname, @@port, COALESCE(DATABASE(), ''), VERSION()`

// Backend connects through the go-sql-driver/mysql driver.
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
	return "mysql"
}

// Inspect implements orm.Inspector.
func (backend) Inspect(ctx context.Context, q sqlx.QueryerContext) (orm.ServerInfo, error) {
	var info orm.ServerInfo
	err := q.QueryRowxContext(ctx, inspectQuery).
		Scan(&info.Address, &info.Port, &info.Database, &info.Version)
	return info, err
}

// ErrorCode implements orm.ErrorCoder. It returns the MySQL error number,
// e.g. "1062" for a duplicate key.
func (backend) ErrorCode(err error) string {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	return ""
}

// ErrorCode returns the MySQL error number carried by err, or "" when there is none.
func ErrorCode(err error) string {
	return backend{}.ErrorCode(err)
}

// Conn is an instrumented MySQL connection.
type Conn struct {
	*orm.Conn
}

// Establish opens and wraps a MySQL connection.
func Establish(ctx context.Context, dsn string, opts ...orm.Option) (*Conn, error) {
	conn, err := orm.Establish(ctx, Backend, dsn, opts...)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn}, nil
}

// EstablishConfig opens and wraps a MySQL connection described by a driver
// config instead of a DSN.
//
//	cfg := mysqldriver.NewConfig()
//	cfg.User, cfg.Passwd = "app", secret
//	cfg.Net, cfg.Addr, cfg.DBName = "tcp", "db:3306", "orders"
//	conn, err := mysql.EstablishConfig(ctx, cfg)
func EstablishConfig(ctx context.Context, cfg *mysqldriver.Config, opts ...orm.Option) (*Conn, error) {
	connector, err := mysqldriver.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return New(ctx, sql.OpenDB(connector), opts...)
}

// New wraps an existing handle opened with the mysql driver and takes
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

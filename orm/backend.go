package orm

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Backend describes a database system supported by the instrumentation.
// The postgres, mysql and sqlite packages each provide one; importing a
// backend package is what links its driver into the binary.
type Backend interface {
	// System is the "db.system" attribute value, e.g. "postgresql".
	System() string

	// DriverName is the database/sql driver name registered by the backend.
	DriverName() string
}

// Inspector is implemented by backends that can look up server metadata
// right after a connection is established.
type Inspector interface {
	Inspect(ctx context.Context, q sqlx.QueryerContext) (ServerInfo, error)
}

// ErrorCoder is implemented by backends that can extract a status code
// (SQLSTATE, error number, ...) from their driver's errors.
// It returns "" when err carries no code.
type ErrorCoder interface {
	ErrorCode(err error) string
}

// ServerInfo is the metadata reported by the database server for a
// connection. Zero values are omitted from span attributes.
type ServerInfo struct {
	Address  string
	Port     int
	Database string
	Version  string
}

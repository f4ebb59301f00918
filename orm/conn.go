package orm

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	batchOperation   = "BATCH"
	prepareOperation = "PREPARE"
)

// instrument is the span plumbing shared by Conn and Tx.
type instrument struct {
	cfg   *config
	attrs []attribute.KeyValue
	coder ErrorCoder
	owner *Conn
}

// startQuery starts a span for caller supplied SQL.
func (in *instrument) startQuery(ctx context.Context, name, query string) (context.Context, *call) {
	return in.cfg.startCall(ctx, name, extractOperation(query), in.attrs,
		in.cfg.queryAttributes(in.attrs, query), in.coder)
}

// startOp starts a span for a fixed operation such as BEGIN or PING.
func (in *instrument) startOp(ctx context.Context, operation string) (context.Context, *call) {
	return in.cfg.startCall(ctx, operation, operation, in.attrs,
		operationAttributes(in.attrs, operation), in.coder)
}

// startBatch starts a span for a batch of statements.
func (in *instrument) startBatch(ctx context.Context, query string) (context.Context, *call) {
	attrs := make([]attribute.KeyValue, 0, len(in.attrs)+2)
	attrs = append(attrs, in.attrs...)
	if in.cfg.RecordStatement && query != "" {
		statement := query
		if in.cfg.QuerySanitizer != nil {
			statement = in.cfg.QuerySanitizer(query)
		}
		attrs = append(attrs, semconv.DBStatementKey.String(statement))
	}
	attrs = append(attrs, semconv.DBOperationKey.String(batchOperation))

	return in.cfg.startCall(ctx, batchOperation, batchOperation, in.attrs, attrs, in.coder)
}

// startPrepare starts a span for preparing a statement. The histogram
// records it as PREPARE; the span keeps the statement's own operation.
func (in *instrument) startPrepare(ctx context.Context, name, query string) (context.Context, *call) {
	return in.cfg.startCall(ctx, name, prepareOperation, in.attrs,
		in.cfg.queryAttributes(in.attrs, query), in.coder)
}

// finish ends the call and lets the owning connection observe err.
func (in *instrument) finish(ctx context.Context, c *call, err error) {
	c.end(ctx, err)
	if in.owner != nil {
		in.owner.observe(err)
	}
}

// Conn is an instrumented database connection. It owns exactly one
// connection of the underlying driver, held in a private *sqlx.DB that
// never opens a second one.
//
// Like the connection it wraps, a Conn must not be used by more than one
// goroutine at a time. The wrapped *sqlx.Conn is not exported, so every
// call made through a Conn is traced.
type Conn struct {
	instrument

	conn    *sqlx.Conn
	db      *sqlx.DB
	backend Backend
	info    ServerInfo
	id      string
	broken  bool
}

// Establish opens a new connection for the given backend and wraps it.
// The connection is dialed before Establish returns, inside a "CONNECT"
// span. Errors are returned exactly as the driver produced them.
//
// Most callers use the backend packages instead:
//
//	conn, err := postgres.Establish(ctx, dsn, orm.WithDBName("users"))
func Establish(ctx context.Context, backend Backend, dsn string, opts ...Option) (*Conn, error) {
	return connect(ctx, backend, opts, func() (*sqlx.DB, error) {
		return sqlx.Open(backend.DriverName(), dsn)
	})
}

// New wraps an existing handle. The returned Conn takes ownership of db:
// the handle is limited to a single open connection and is closed by
// Conn.Close.
func New(ctx context.Context, backend Backend, db *sql.DB, opts ...Option) (*Conn, error) {
	return connect(ctx, backend, opts, func() (*sqlx.DB, error) {
		return sqlx.NewDb(db, backend.DriverName()), nil
	})
}

func connect(
	ctx context.Context,
	backend Backend,
	opts []Option,
	open func() (*sqlx.DB, error),
) (*Conn, error) {
	cfg := newConfig(opts...)
	cfg.DBSystem = backend.System()
	coder, _ := backend.(ErrorCoder)

	base := cfg.baseAttributes(ServerInfo{})
	ctx, c := cfg.startCall(ctx, "CONNECT", "CONNECT", base, operationAttributes(base, "CONNECT"), coder)

	db, err := open()
	if err != nil {
		c.end(ctx, err)
		return nil, err
	}
	db.SetMaxOpenConns(1)

	raw, err := db.Connx(ctx)
	if err != nil {
		c.end(ctx, err)
		_ = db.Close()
		return nil, err
	}

	conn := &Conn{
		conn:    raw,
		db:      db,
		backend: backend,
		id:      uuid.NewString(),
	}
	conn.info = conn.inspect(ctx, cfg)
	conn.instrument = instrument{
		cfg:   cfg,
		attrs: cfg.baseAttributes(conn.info),
		coder: coder,
		owner: conn,
	}

	c.span.SetAttributes(conn.attrs...)
	c.end(ctx, nil)

	cfg.Logger.Debug().
		Str("db.system", cfg.DBSystem).
		Str("connection_id", conn.id).
		Str("server.address", conn.info.Address).
		Str("db.version", conn.info.Version).
		Msg("database connection established")

	return conn, nil
}

// inspect asks the backend for server metadata. A failed lookup is logged
// and leaves the connection usable without server attributes.
func (c *Conn) inspect(ctx context.Context, cfg *config) ServerInfo {
	inspector, ok := c.backend.(Inspector)
	if !ok || cfg.SkipServerInfo {
		return ServerInfo{}
	}

	info, err := inspector.Inspect(ctx, c.raw())
	if err != nil {
		cfg.Logger.Warn().
			Err(err).
			Str("db.system", cfg.DBSystem).
			Str("connection_id", c.id).
			Msg("failed to inspect database server")
		return ServerInfo{}
	}
	return info
}

func (c *Conn) raw() rawConn {
	return rawConn{Conn: c.conn, driverName: c.backend.DriverName()}
}

// observe marks the connection broken once the driver reports it unusable.
func (c *Conn) observe(err error) {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		c.broken = true
	}
}

// ID returns the identifier assigned to this connection on establish.
func (c *Conn) ID() string {
	return c.id
}

// Info returns the server metadata looked up on establish.
func (c *Conn) Info() ServerInfo {
	return c.info
}

// Backend returns the backend the connection was established with.
func (c *Conn) Backend() Backend {
	return c.backend
}

// IsBroken reports whether the driver has signalled that the connection
// can no longer be used.
func (c *Conn) IsBroken() bool {
	return c.broken
}

// DriverName returns the driver name.
func (c *Conn) DriverName() string {
	return c.backend.DriverName()
}

// Rebind transforms a query from QUESTION to the driver's bindvar type.
func (c *Conn) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(c.DriverName()), query)
}

// BindNamed binds a named query to a map or struct.
func (c *Conn) BindNamed(query string, arg any) (string, []any, error) {
	return c.raw().BindNamed(query, arg)
}

// Close closes the connection and the handle that owns it.
//
// Close blocks until every transaction begun on the connection has been
// committed or rolled back. A Conn must not be closed while a Tx is open.
func (c *Conn) Close() error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}

	event := c.cfg.Logger.Debug()
	if err != nil {
		event = c.cfg.Logger.Warn().Err(err)
	}
	event.Str("connection_id", c.id).Msg("database connection closed")

	return err
}

// ExecContext executes a query without returning rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, call := c.startQuery(ctx, spanName(query), query)
	result, err := c.conn.ExecContext(ctx, query, args...)
	c.finish(ctx, call, err)
	return result, err
}

// QueryContext executes a query and returns rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, call := c.startQuery(ctx, spanName(query), query)
	rows, err := c.conn.QueryContext(ctx, query, args...)
	c.finish(ctx, call, err)
	return rows, err
}

// QueryxContext executes a query and returns sqlx.Rows.
func (c *Conn) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	ctx, call := c.startQuery(ctx, sqlxSpanName("sqlx.Queryx", query), query)
	rows, err := c.conn.QueryxContext(ctx, query, args...)
	c.finish(ctx, call, err)
	return rows, err
}

// QueryRowContext executes a query and returns a single row.
// The span carries the query error if there is one; scan errors such as
// sql.ErrNoRows surface later from Scan.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, call := c.startQuery(ctx, spanName(query), query)
	row := c.conn.QueryRowContext(ctx, query, args...)
	c.finish(ctx, call, row.Err())
	return row
}

// QueryRowxContext executes a query and returns a single sqlx.Row.
func (c *Conn) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	ctx, call := c.startQuery(ctx, sqlxSpanName("sqlx.QueryRowx", query), query)
	row := c.conn.QueryRowxContext(ctx, query, args...)
	c.finish(ctx, call, row.Err())
	return row
}

// GetContext executes a query that is expected to return at most one row
// and scans the result into dest.
func (c *Conn) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, call := c.startQuery(ctx, sqlxSpanName("sqlx.Get", query), query)
	err := c.conn.GetContext(ctx, dest, query, args...)
	c.finish(ctx, call, err)
	return err
}

// SelectContext executes a query and scans all results into dest.
func (c *Conn) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, call := c.startQuery(ctx, sqlxSpanName("sqlx.Select", query), query)
	err := c.conn.SelectContext(ctx, dest, query, args...)
	c.finish(ctx, call, err)
	return err
}

// NamedExecContext executes a named query.
func (c *Conn) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	ctx, call := c.startQuery(ctx, sqlxSpanName("sqlx.NamedExec", query), query)
	result, err := sqlx.NamedExecContext(ctx, c.raw(), query, arg)
	c.finish(ctx, call, err)
	return result, err
}

// NamedQueryContext executes a named query and returns rows.
func (c *Conn) NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error) {
	ctx, call := c.startQuery(ctx, sqlxSpanName("sqlx.NamedQuery", query), query)
	rows, err := sqlx.NamedQueryContext(ctx, c.raw(), query, arg)
	c.finish(ctx, call, err)
	return rows, err
}

// BatchExecContext runs one or more statements that take no arguments.
// Whether several ';'-separated statements are accepted is up to the
// driver (MySQL needs multiStatements=true in the DSN).
func (c *Conn) BatchExecContext(ctx context.Context, query string) error {
	ctx, call := c.startBatch(ctx, query)
	_, err := c.conn.ExecContext(ctx, query)
	c.finish(ctx, call, err)
	return err
}

// PingContext verifies the connection is still alive.
func (c *Conn) PingContext(ctx context.Context) error {
	ctx, call := c.startOp(ctx, "PING")
	err := c.conn.PingContext(ctx)
	c.finish(ctx, call, err)
	return err
}

// PreparexContext prepares a statement on the connection. Executions of
// the returned Stmt are traced like direct calls.
func (c *Conn) PreparexContext(ctx context.Context, query string) (*Stmt, error) {
	ctx, call := c.startPrepare(ctx, "sqlx.Preparex", query)
	stmt, err := c.conn.PreparexContext(ctx, query)
	c.finish(ctx, call, err)
	if err != nil {
		return nil, err
	}

	return &Stmt{stmt: stmt, instrument: c.instrument, query: query}, nil
}

// BeginTxx starts an instrumented transaction.
func (c *Conn) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	spanCtx, call := c.startOp(ctx, "BEGIN")
	tx, err := c.conn.BeginTxx(spanCtx, opts)
	c.finish(spanCtx, call, err)
	if err != nil {
		return nil, err
	}

	return &Tx{tx: tx, instrument: c.instrument, ctx: ctx}, nil
}

// Transaction runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back when it returns an error or panics.
// fn's error is returned unchanged.
//
//	err := conn.Transaction(ctx, nil, func(tx *orm.Tx) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - 10 WHERE id = 1")
//	    return err
//	})
func (c *Conn) Transaction(ctx context.Context, opts *sql.TxOptions, fn func(*Tx) error) error {
	tx, err := c.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}
	return tx.run(fn)
}

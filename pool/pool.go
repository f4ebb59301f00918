package pool

import (
	"context"
	"database/sql"

	"github.com/jackc/puddle/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/sentinel-orm/orm"
)

// Conn is the capability set a pooled connection provides. *orm.Conn and
// the backend Conn types (postgres.Conn, mysql.Conn, sqlite.Conn) satisfy it.
type Conn interface {
	orm.Connection

	PingContext(ctx context.Context) error
	Transaction(ctx context.Context, opts *sql.TxOptions, fn func(*orm.Tx) error) error
	IsBroken() bool
	Close() error
}

// Pool hands out instrumented connections managed by puddle.
// Sizing, waiting and reuse are puddle's; the pool only forwards the
// connection capability set and destroys connections that report
// themselves broken.
type Pool[C Conn] struct {
	pool *puddle.Pool[C]
	cfg  *config
}

// New creates a pool whose connections are built by connect.
// No connection is opened until one is acquired or Prewarm is called.
//
//	p, err := pool.New(sqlite.Connect("app.db"), pool.WithMaxSize(4))
func New[C Conn](connect func(context.Context) (C, error), opts ...Option) (*Pool[C], error) {
	cfg := newConfig(opts...)

	p, err := puddle.NewPool(&puddle.Config[C]{
		Constructor: connect,
		Destructor: func(c C) {
			if err := c.Close(); err != nil {
				cfg.Logger.Warn().Err(err).Msg("failed to close pooled connection")
			}
		},
		MaxSize: cfg.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	return &Pool[C]{pool: p, cfg: cfg}, nil
}

// Pooled is a connection checked out of the pool.
type Pooled[C Conn] struct {
	res *puddle.Resource[C]
}

// Conn returns the checked out connection. It must not be used after
// Release.
func (p *Pooled[C]) Conn() C {
	return p.res.Value()
}

// Release returns the connection to the pool, or destroys it when the
// connection reports itself broken. Transactions begun on the connection
// must be finished first: destroying a connection closes it, and Close
// waits for any open transaction.
func (p *Pooled[C]) Release() {
	if p.res.Value().IsBroken() {
		p.res.Destroy()
		return
	}
	p.res.Release()
}

// Acquire checks a connection out of the pool, establishing one if none
// is idle and the pool is not full. Callers must Release it.
func (p *Pool[C]) Acquire(ctx context.Context) (*Pooled[C], error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Pooled[C]{res: res}, nil
}

// WithConn acquires a connection, passes it to fn and releases it.
func (p *Pool[C]) WithConn(ctx context.Context, fn func(C) error) error {
	pc, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pc.Release()

	return fn(pc.Conn())
}

// ExecContext executes a query on a pooled connection.
func (p *Pool[C]) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := p.WithConn(ctx, func(c C) error {
		var err error
		result, err = c.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

// GetContext runs a single row query on a pooled connection.
func (p *Pool[C]) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return p.WithConn(ctx, func(c C) error {
		return c.GetContext(ctx, dest, query, args...)
	})
}

// SelectContext runs a query on a pooled connection and scans all rows
// into dest.
func (p *Pool[C]) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return p.WithConn(ctx, func(c C) error {
		return c.SelectContext(ctx, dest, query, args...)
	})
}

// NamedExecContext executes a named query on a pooled connection.
func (p *Pool[C]) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	var result sql.Result
	err := p.WithConn(ctx, func(c C) error {
		var err error
		result, err = c.NamedExecContext(ctx, query, arg)
		return err
	})
	return result, err
}

// BatchExecContext runs argument-less statements on a pooled connection.
func (p *Pool[C]) BatchExecContext(ctx context.Context, query string) error {
	return p.WithConn(ctx, func(c C) error {
		return c.BatchExecContext(ctx, query)
	})
}

// PingContext pings a pooled connection.
func (p *Pool[C]) PingContext(ctx context.Context) error {
	return p.WithConn(ctx, func(c C) error {
		return c.PingContext(ctx)
	})
}

// Transaction runs fn in a transaction on a single pooled connection.
func (p *Pool[C]) Transaction(ctx context.Context, opts *sql.TxOptions, fn func(*orm.Tx) error) error {
	return p.WithConn(ctx, func(c C) error {
		return c.Transaction(ctx, opts, fn)
	})
}

// Prewarm establishes up to n idle connections concurrently, bounded by
// the room left in the pool. The first construction error is returned.
func (p *Pool[C]) Prewarm(ctx context.Context, n int) error {
	room := int(p.pool.Stat().MaxResources() - p.pool.Stat().TotalResources())
	n = min(n, room)

	g, ctx := errgroup.WithContext(ctx)
	for range n {
		g.Go(func() error {
			return p.pool.CreateResource(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p.cfg.Logger.Debug().Int("connections", n).Msg("connection pool prewarmed")
	return nil
}

// Stat returns a snapshot of the pool statistics.
func (p *Pool[C]) Stat() *puddle.Stat {
	return p.pool.Stat()
}

// Close closes idle connections and waits for acquired ones to be
// released and closed.
func (p *Pool[C]) Close() {
	p.pool.Close()
	p.cfg.Logger.Debug().Msg("connection pool closed")
}

// Package pool exposes instrumented connections to a generic resource pool
// (github.com/jackc/puddle/v2).
//
// The pool is typed by the connection it hands out, so backend specific
// connection types survive pooling:
//
//	p, err := pool.New(postgres.Connect(dsn, orm.WithDBName("myapp")),
//	    pool.WithMaxSize(8),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	var users []User
//	err = p.SelectContext(ctx, &users, "SELECT * FROM users")
//
// Every call is traced by the pooled connection itself; the pool adds no
// spans. Pool statistics are available through RecordMetrics (OpenTelemetry)
// and NewCollector (Prometheus).
package pool

// Package orm wraps sqlx connections with OpenTelemetry tracing and metrics.
//
// A Conn owns exactly one connection of the underlying driver. Every call
// that reaches the database is delegated unchanged to sqlx inside a client
// span; the result and error are returned exactly as sqlx produced them.
//
// # Features
//
//   - Span per call with database semantic-convention attributes
//   - db.client.operation.duration histogram by operation and status
//   - Server inspection on establish (address, port, database, version)
//   - Nested transactions through savepoints
//   - Implements sqlx.ExtContext, so generic sqlx helpers keep working
//
// # Quick Start
//
// Backends live in their own packages; import the ones you need:
//
//	import (
//	    "github.com/kroma-labs/sentinel-orm/orm"
//	    "github.com/kroma-labs/sentinel-orm/postgres"
//	)
//
//	conn, err := postgres.Establish(ctx, dsn,
//	    orm.WithDBName("myapp"),
//	    orm.WithInstanceName("primary"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	var users []User
//	err = conn.SelectContext(ctx, &users, "SELECT * FROM users")
//
// # Statement Recording
//
// Query text is only attached to spans ("db.statement") when the module is
// built with the sentinel_statement tag:
//
//	go build -tags sentinel_statement ./...
//
// WithDisableQuery turns recording off again at runtime and
// WithQuerySanitizer masks literals in recorded statements.
//
// # Observability
//
// Traces:
//   - Span per call named after the SQL operation (SELECT, INSERT, ...),
//     sqlx helpers as "sqlx.Get: SELECT", and CONNECT, BEGIN, COMMIT,
//     ROLLBACK, SAVEPOINT, PING, BATCH for the rest
//   - Attributes: db.system, db.name, db.instance, db.operation,
//     db.statement, server.address, server.port, db.version
//   - Failed calls: error status, exception event and
//     db.response.status_code when the backend can classify the error
//
// Metrics:
//   - db.client.operation.duration (histogram by operation and status)
package orm

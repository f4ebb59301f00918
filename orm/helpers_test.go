package orm

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testBackend is a Backend over the sqlmock driver.
type testBackend struct {
	code string
}

func (testBackend) System() string     { return "postgresql" }
func (testBackend) DriverName() string { return "sqlmock" }

func (b testBackend) ErrorCode(_ error) string {
	return b.code
}

// inspectingBackend reports fixed server info, or fails inspection.
type inspectingBackend struct {
	testBackend
	info ServerInfo
	err  error
}

func (b inspectingBackend) Inspect(_ context.Context, _ sqlx.QueryerContext) (ServerInfo, error) {
	return b.info, b.err
}

// unknownBackend names a driver nobody registered.
type unknownBackend struct{}

func (unknownBackend) System() string     { return "postgresql" }
func (unknownBackend) DriverName() string { return "nonexistent_driver" }

// newTestConn wraps a sqlmock handle with a tracer writing to an in-memory
// exporter. Spans emitted while connecting are discarded.
func newTestConn(
	t *testing.T,
	backend Backend,
	opts ...Option,
) (*Conn, sqlmock.Sqlmock, *tracetest.InMemoryExporter) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	tp, exporter := newTestTracerProvider(t)
	opts = append([]Option{WithTracerProvider(tp), WithMeterProvider(sdkmetric.NewMeterProvider())}, opts...)
	conn, err := New(context.Background(), backend, db, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	exporter.Reset()
	return conn, mock, exporter
}

// newTestTracerProvider returns a tracer provider exporting synchronously to
// an in-memory exporter.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return tp, exporter
}

// attrMap flattens span attributes for lookups.
func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		m[string(attr.Key)] = attr.Value.Emit()
	}
	return m
}

// spanNames returns the names of the exported spans in end order.
func spanNames(spans tracetest.SpanStubs) []string {
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name)
	}
	return names
}

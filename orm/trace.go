package orm

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// attrInstance identifies a connection instance (primary, replica, ...).
	attrInstance = attribute.Key("db.instance")

	// attrVersion is the server version reported on establish.
	attrVersion = attribute.Key("db.version")

	// attrStatusCode is the backend specific error code of a failed call.
	attrStatusCode = attribute.Key("db.response.status_code")
)

// Regex patterns for query sanitization.
var (
	// stringLiteralRegex matches single-quoted strings, handling escaped quotes.
	// Example matches: 'hello', 'it\'s', 'foo''bar'
	stringLiteralRegex = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

	// numericLiteralRegex matches numeric literals (integers and floats).
	numericLiteralRegex = regexp.MustCompile(`\b\d+\.?\d*\b`)

	// hexLiteralRegex matches hex literals.
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)
)

// spanName returns a span name from a SQL query.
// Returns the SQL operation (SELECT, INSERT, etc.) or "SQL" for empty queries.
//
//	spanName("SELECT * FROM users") // returns "SELECT"
//	spanName("")                    // returns "SQL"
func spanName(query string) string {
	op := extractOperation(query)
	if op != "" {
		return op
	}
	return "SQL"
}

// sqlxSpanName generates a span name for sqlx-specific operations.
//
//	sqlxSpanName("sqlx.Get", "select 1") // returns "sqlx.Get: SELECT"
func sqlxSpanName(method, query string) string {
	op := extractOperation(query)
	if op == "" {
		return method
	}
	return method + ": " + op
}

// extractOperation extracts the SQL operation (first word) from a query.
// Returns uppercase operation name or empty string if query is empty.
func extractOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	spaceIdx := strings.IndexAny(query, " \t\n\r")
	if spaceIdx == -1 {
		return strings.ToUpper(strings.TrimSuffix(query, ";"))
	}

	return strings.ToUpper(query[:spaceIdx])
}

// DefaultQuerySanitizer is a basic query sanitizer that replaces
// literal values with placeholders to prevent sensitive data from
// appearing in traces.
//
// What it sanitizes:
//   - String literals: 'john' → '?'
//   - Numeric literals: 123, 45.67 → ?
//   - Hex literals: 0xDEADBEEF → ?
//
// Note: This is a simple regex-based implementation. For production use
// with complex queries, consider using a proper SQL parser.
func DefaultQuerySanitizer(query string) string {
	query = stringLiteralRegex.ReplaceAllString(query, "'?'")
	query = numericLiteralRegex.ReplaceAllString(query, "?")
	query = hexLiteralRegex.ReplaceAllString(query, "?")
	return query
}

// baseAttributes returns the fixed attributes of a connection: system,
// database name, instance and whatever the server reported on establish.
func (cfg *config) baseAttributes(info ServerInfo) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	if cfg.DBSystem != "" {
		attrs = append(attrs, semconv.DBSystemKey.String(cfg.DBSystem))
	}

	name := cfg.DBName
	if name == "" {
		name = info.Database
	}
	if name != "" {
		attrs = append(attrs, semconv.DBNameKey.String(name))
	}

	if cfg.InstanceName != "" {
		attrs = append(attrs, attrInstance.String(cfg.InstanceName))
	}
	if info.Address != "" {
		attrs = append(attrs, semconv.ServerAddressKey.String(info.Address))
	}
	if info.Port != 0 {
		attrs = append(attrs, semconv.ServerPortKey.Int(info.Port))
	}
	if info.Version != "" {
		attrs = append(attrs, attrVersion.String(info.Version))
	}
	return attrs
}

// queryAttributes returns attributes for query spans.
func (cfg *config) queryAttributes(base []attribute.KeyValue, query string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(base)+2)
	attrs = append(attrs, base...)

	if cfg.RecordStatement && query != "" {
		sanitized := query
		if cfg.QuerySanitizer != nil {
			sanitized = cfg.QuerySanitizer(query)
		}
		attrs = append(attrs, semconv.DBStatementKey.String(sanitized))
	}

	if op := extractOperation(query); op != "" {
		attrs = append(attrs, semconv.DBOperationKey.String(op))
	}

	return attrs
}

// operationAttributes returns attributes for spans that do not run caller
// supplied SQL (BEGIN, COMMIT, PING, ...).
func operationAttributes(base []attribute.KeyValue, operation string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(base)+1)
	attrs = append(attrs, base...)
	return append(attrs, semconv.DBOperationKey.String(operation))
}

// call is one traced delegation: the span, its start time and what is
// needed to finish it.
type call struct {
	span      trace.Span
	start     time.Time
	operation string
	cfg       *config
	base      []attribute.KeyValue
	coder     ErrorCoder
}

// startCall starts a client span for one delegated call.
func (cfg *config) startCall(
	ctx context.Context,
	name string,
	operation string,
	base []attribute.KeyValue,
	attrs []attribute.KeyValue,
	coder ErrorCoder,
) (context.Context, *call) {
	ctx, span := cfg.Tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &call{
		span:      span,
		start:     time.Now(),
		operation: operation,
		cfg:       cfg,
		base:      base,
		coder:     coder,
	}
}

// end records the outcome of the call and ends its span.
// err is never modified.
func (c *call) end(ctx context.Context, err error) {
	defer c.span.End()

	c.cfg.Metrics.recordQueryDuration(ctx, time.Since(c.start), c.operation, c.base, err)

	if err == nil {
		return
	}

	if c.coder != nil {
		if code := c.coder.ErrorCode(err); code != "" {
			c.span.SetAttributes(attrStatusCode.String(code))
		}
	}
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
}

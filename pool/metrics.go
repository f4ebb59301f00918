package pool

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordMetrics registers connection pool metrics for p on meter.
// The values are read from the pool statistics when the meter is collected.
//
// Example:
//
//	p, _ := pool.New(postgres.Connect(dsn))
//	err := pool.RecordMetrics(p, otel.GetMeterProvider().Meter("myapp"),
//	    attribute.String("db.system", postgres.System),
//	)
func RecordMetrics[C Conn](p *Pool[C], meter metric.Meter, attrs ...attribute.KeyValue) error {
	openConnections, err := meter.Int64ObservableGauge(
		"db.client.connections.open",
		metric.WithDescription("Number of open connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	idleConnections, err := meter.Int64ObservableGauge(
		"db.client.connections.idle",
		metric.WithDescription("Number of idle connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	maxConnections, err := meter.Int64ObservableGauge(
		"db.client.connections.max",
		metric.WithDescription("Maximum number of connections allowed in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	usedConnections, err := meter.Int64ObservableGauge(
		"db.client.connections.used",
		metric.WithDescription("Number of connections currently in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	waitCount, err := meter.Int64ObservableCounter(
		"db.client.connections.wait_count",
		metric.WithDescription("Total number of acquires that waited for a connection"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	waitDuration, err := meter.Float64ObservableCounter(
		"db.client.connections.wait_duration",
		metric.WithDescription("Total time spent acquiring connections in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			stat := p.Stat()
			opt := metric.WithAttributes(attrs...)

			o.ObserveInt64(openConnections, int64(stat.TotalResources()), opt)
			o.ObserveInt64(idleConnections, int64(stat.IdleResources()), opt)
			o.ObserveInt64(maxConnections, int64(stat.MaxResources()), opt)
			o.ObserveInt64(usedConnections, int64(stat.AcquiredResources()), opt)
			o.ObserveInt64(waitCount, stat.EmptyAcquireCount(), opt)
			o.ObserveFloat64(waitDuration, stat.AcquireDuration().Seconds(), opt)

			return nil
		},
		openConnections,
		idleConnections,
		maxConnections,
		usedConnections,
		waitCount,
		waitDuration,
	)

	return err
}

package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordMetrics(t *testing.T) {
	p := newTestPool(t, WithMaxSize(3))
	ctx := context.Background()
	require.NoError(t, p.Prewarm(ctx, 1))

	held, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer held.Release()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, RecordMetrics(p, mp.Meter("test"), attribute.String("db.system", "sqlite")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	got := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Gauge[int64]:
			require.Len(t, data.DataPoints, 1)
			system, ok := data.DataPoints[0].Attributes.Value("db.system")
			require.True(t, ok)
			assert.Equal(t, "sqlite", system.AsString())
			got[m.Name] = data.DataPoints[0].Value
		case metricdata.Sum[int64]:
			require.Len(t, data.DataPoints, 1)
			got[m.Name] = data.DataPoints[0].Value
		case metricdata.Sum[float64]:
			require.Len(t, data.DataPoints, 1)
			assert.GreaterOrEqual(t, data.DataPoints[0].Value, float64(0))
			got[m.Name] = 0
		}
	}

	assert.Equal(t, map[string]int64{
		"db.client.connections.open":          2,
		"db.client.connections.idle":          1,
		"db.client.connections.max":           3,
		"db.client.connections.used":          1,
		"db.client.connections.wait_count":    1,
		"db.client.connections.wait_duration": 0,
	}, got)
}

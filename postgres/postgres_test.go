package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kroma-labs/sentinel-orm/orm"
)

func TestBackend_ErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "given pgx error, then returns SQLSTATE",
			err:      &pgconn.PgError{Code: "23505", Message: "duplicate key"},
			wantCode: "23505",
		},
		{
			name:     "given wrapped pgx error, then returns SQLSTATE",
			err:      fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "40001"}),
			wantCode: "40001",
		},
		{
			name:     "given lib/pq error, then returns SQLSTATE",
			err:      &pq.Error{Code: "42P01", Message: "relation does not exist"},
			wantCode: "42P01",
		},
		{
			name:     "given unrelated error, then returns empty code",
			err:      assert.AnError,
			wantCode: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, Backend.(orm.ErrorCoder).ErrorCode(tt.err))
		})
	}
}

func TestBackend_Inspect(t *testing.T) {
	tests := []struct {
		name     string
		mockFn   func(sqlmock.Sqlmock)
		wantErr  assert.ErrorAssertionFunc
		wantInfo orm.ServerInfo
	}{
		{
			name: "given server answers, then returns server info",
			mockFn: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"addr", "port", "db", "version"}).
					AddRow("10.0.0.5", 5432, "users", "16.2")
				mock.ExpectQuery(inspectQuery).WillReturnRows(rows)
			},
			wantErr: assert.NoError,
			wantInfo: orm.ServerInfo{
				Address:  "10.0.0.5",
				Port:     5432,
				Database: "users",
				Version:  "16.2",
			},
		},
		{
			name: "given query fails, then returns error",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(inspectQuery).WillReturnError(assert.AnError)
			},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer mockDB.Close()
			tt.mockFn(mock)

			info, err := Backend.(orm.Inspector).Inspect(context.Background(), sqlx.NewDb(mockDB, "pgx"))

			tt.wantErr(t, err)
			assert.Equal(t, tt.wantInfo, info)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNew(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"addr", "port", "db", "version"}).
		AddRow("10.0.0.5", 5432, "users", "16.2")
	mock.ExpectQuery(inspectQuery).WillReturnRows(rows)
	mock.ExpectExec("UPDATE users SET active = $1").
		WithArgs(true).
		WillReturnResult(sqlmock.NewResult(0, 3))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	conn, err := New(context.Background(), mockDB, orm.WithTracerProvider(tp))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "pgx", conn.DriverName())
	assert.Equal(t, "UPDATE users SET active = $1", conn.Rebind("UPDATE users SET active = ?"))
	assert.Equal(t, "16.2", conn.Info().Version)

	_, err = conn.ExecContext(context.Background(), "UPDATE users SET active = $1", true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "CONNECT", spans[0].Name)
	assert.Equal(t, "UPDATE", spans[1].Name)

	attrs := map[string]string{}
	for _, attr := range spans[1].Attributes {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}
	assert.Equal(t, System, attrs["db.system"])
	assert.Equal(t, "users", attrs["db.name"])
	assert.Equal(t, "10.0.0.5", attrs["server.address"])
	assert.Equal(t, "5432", attrs["server.port"])
}

func TestEstablish(t *testing.T) {
	tests := []struct {
		name    string
		backend orm.Backend
	}{
		{name: "given pgx backend and canceled context, then returns context error", backend: Backend},
		{name: "given lib/pq backend and canceled context, then returns context error", backend: LibPQ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			conn, err := EstablishWith(ctx, tt.backend, "postgres://localhost:5432/app?sslmode=disable")

			assert.ErrorIs(t, err, context.Canceled)
			assert.Nil(t, conn)
		})
	}
}

func TestConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := Connect("postgres://localhost:5432/app?sslmode=disable")(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, conn)
}

func TestNewWith(t *testing.T) {
	tests := []struct {
		name       string
		backend    orm.Backend
		wantDriver string
	}{
		{
			name:       "given the pgx backend, then reports the pgx driver",
			backend:    Backend,
			wantDriver: "pgx",
		},
		{
			name:       "given the lib/pq backend, then reports the postgres driver",
			backend:    LibPQ,
			wantDriver: "postgres",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB, _, err := sqlmock.New()
			require.NoError(t, err)

			conn, err := NewWith(context.Background(), tt.backend, mockDB, orm.WithoutServerInfo())
			require.NoError(t, err)
			defer conn.Close()

			assert.Equal(t, tt.wantDriver, conn.DriverName())
			assert.Equal(t, "SELECT $1", conn.Rebind("SELECT ?"))
		})
	}
}

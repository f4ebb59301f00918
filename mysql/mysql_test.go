package mysql

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-orm/orm"
)

func TestBackend_ErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "given duplicate key error, then returns error number",
			err:      &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"},
			wantCode: "1062",
		},
		{
			name:     "given wrapped deadlock error, then returns error number",
			err:      fmt.Errorf("transfer: %w", &mysqldriver.MySQLError{Number: 1213}),
			wantCode: "1213",
		},
		{
			name:     "given driver sentinel error, then returns empty code",
			err:      mysqldriver.ErrInvalidConn,
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
				rows := sqlmock.NewRows([]string{"hostname", "port", "db", "version"}).
					AddRow("mysql-0", 3306, "orders", "8.0.36")
				mock.ExpectQuery(inspectQuery).WillReturnRows(rows)
			},
			wantErr: assert.NoError,
			wantInfo: orm.ServerInfo{
				Address:  "mysql-0",
				Port:     3306,
				Database: "orders",
				Version:  "8.0.36",
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

			info, err := Backend.(orm.Inspector).Inspect(context.Background(), sqlx.NewDb(mockDB, "mysql"))

			tt.wantErr(t, err)
			assert.Equal(t, tt.wantInfo, info)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNew(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	mock.ExpectQuery(inspectQuery).WillReturnError(assert.AnError)

	conn, err := New(context.Background(), mockDB)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, orm.ServerInfo{}, conn.Info())
	assert.Equal(t, System, conn.Backend().System())
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ?", conn.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEstablish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := Establish(ctx, "app:secret@tcp(127.0.0.1:3306)/orders")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, conn)
}

func TestEstablishConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := mysqldriver.NewConfig()
	cfg.User = "app"
	cfg.Net = "tcp"
	cfg.Addr = "127.0.0.1:3306"
	cfg.DBName = "orders"

	conn, err := EstablishConfig(ctx, cfg)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, conn)
}

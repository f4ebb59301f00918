package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), Options{
		DSN:          filepath.Join(t.TempDir(), "example.db"),
		MaxConns:     2,
		InstanceName: "test",
		Logger:       zerolog.Nop(),
		Registerer:   prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore_CreateUser(t *testing.T) {
	tests := []struct {
		name     string
		existing []NewUser
		in       NewUser
		wantErr  assert.ErrorAssertionFunc
	}{
		{
			name:    "given new email, then creates user",
			in:      NewUser{Name: "John", Email: "john@example.com"},
			wantErr: assert.NoError,
		},
		{
			name:     "given taken email, then returns ErrConflict",
			existing: []NewUser{{Name: "John", Email: "john@example.com"}},
			in:       NewUser{Name: "Johnny", Email: "john@example.com"},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, ErrConflict)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			ctx := context.Background()
			for _, u := range tt.existing {
				_, err := store.CreateUser(ctx, u)
				require.NoError(t, err)
			}

			got, err := store.CreateUser(ctx, tt.in)

			tt.wantErr(t, err)
			if err != nil {
				return
			}
			assert.NotZero(t, got.ID)
			assert.Equal(t, tt.in.Name, got.Name)
			assert.Equal(t, tt.in.Email, got.Email)
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestStore_GetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, NewUser{Name: "Jane", Email: "jane@example.com"})
	require.NoError(t, err)

	got, err := store.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = store.GetUser(ctx, created.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	users, err := store.ListUsers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)

	for _, u := range []NewUser{
		{Name: "A", Email: "a@example.com"},
		{Name: "B", Email: "b@example.com"},
		{Name: "C", Email: "c@example.com"},
	} {
		_, err := store.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	users, err = store.ListUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "A", users[0].Name)
	assert.Equal(t, "B", users[1].Name)

	require.NoError(t, store.Ping(ctx))
}

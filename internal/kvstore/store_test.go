package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "user:1:isPaused")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "user:1:isPaused", "true"))
	v, ok, err := s.Get(ctx, "user:1:isPaused")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "true", v)

	require.NoError(t, s.Set(ctx, "user:1:isPaused", "false"))
	v, _, _ = s.Get(ctx, "user:1:isPaused")
	require.Equal(t, "false", v)

	require.NoError(t, s.Remove(ctx, "user:1:isPaused"))
	require.NoError(t, s.Remove(ctx, "user:1:isPaused"))
	_, ok, err = s.Get(ctx, "user:1:isPaused")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)

	require.NoError(t, m.Set(context.Background(), "user:2:b", "1"))
	require.NoError(t, m.Set(context.Background(), "user:2:a", "1"))
	require.NoError(t, m.Set(context.Background(), "user:3:a", "1"))
	require.Equal(t, []string{"user:2:a", "user:2:b"}, m.Keys("user:2:"))
}

func TestSQLite_RoundTripAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "timer.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Set(ctx, "user:7:lastActiveDate", `"2025-01-15"`))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, "user:7:lastActiveDate")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `"2025-01-15"`, v)
}

func TestPostgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgres(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM timer_kv WHERE key=\$1`).
		WithArgs("user:1:isOnBreak").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("true"))
	v, ok, err := s.Get(ctx, "user:1:isOnBreak")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "true", v)

	mock.ExpectQuery(`SELECT value FROM timer_kv WHERE key=\$1`).
		WithArgs("user:1:missing").
		WillReturnError(pgx.ErrNoRows)
	_, ok, err = s.Get(ctx, "user:1:missing")
	require.NoError(t, err)
	require.False(t, ok)

	boom := errors.New("boom")
	mock.ExpectQuery(`SELECT value FROM timer_kv WHERE key=\$1`).
		WithArgs("user:1:x").
		WillReturnError(boom)
	_, _, err = s.Get(ctx, "user:1:x")
	require.ErrorIs(t, err, boom)

	mock.ExpectExec(`INSERT INTO timer_kv \(key, value, updated_at\) VALUES \(\$1, \$2, now\(\)\) ON CONFLICT \(key\) DO UPDATE SET value = EXCLUDED.value, updated_at = now\(\)`).
		WithArgs("user:1:isOnBreak", "false").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Set(ctx, "user:1:isOnBreak", "false"))

	mock.ExpectExec(`DELETE FROM timer_kv WHERE key=\$1`).
		WithArgs("user:1:isOnBreak").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.Remove(ctx, "user:1:isOnBreak"))

	require.NoError(t, mock.ExpectationsWereMet())
}

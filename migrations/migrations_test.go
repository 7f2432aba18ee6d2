package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_HasUpAndDown(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, f := range files {
		b, err := fs.ReadFile(FS, f)
		require.NoError(t, err)
		require.Contains(t, string(b), "-- +goose Up", f)
		require.Contains(t, string(b), "-- +goose Down", f)
	}

	all := ""
	for _, f := range files {
		b, _ := fs.ReadFile(FS, f)
		all += string(b)
	}
	for _, table := range []string{"users", "auth_limiter", "tasks", "task_assignments", "queries", "query_replies", "timer_kv"} {
		require.True(t, strings.Contains(all, "CREATE TABLE "+table+" ("), table)
	}
}

package postgres

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/tasktime/internal/model"
)

func TestStatsRepo_Stats(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStatsRepo(db)

	mock.ExpectQuery(`SELECT \(SELECT count\(\*\) FROM tasks\)`).
		WithArgs(created).
		WillReturnRows(pgxmock.NewRows([]string{"tasks", "queries", "open", "resolved", "employees", "today"}).
			AddRow(12, 5, 3, 2, 4, 7))
	s, err := r.Stats(context.Background(), created)
	require.NoError(t, err)
	require.Equal(t, model.Stats{
		TotalTasks: 12, TotalQueries: 5, OpenQueries: 3, ResolvedQueries: 2,
		TotalEmployees: 4, AssignmentsToday: 7,
	}, s)
	require.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"time"

	"github.com/and161185/tasktime/internal/model"
)

// StatsRepo implements StatsRepository using PostgreSQL.
type StatsRepo struct{ db *DB }

// NewStatsRepo constructs a stats repository.
func NewStatsRepo(db *DB) *StatsRepo { return &StatsRepo{db: db} }

// Stats counts tasks, queries, employees and today's assignments in one round trip.
func (r *StatsRepo) Stats(ctx context.Context, dayStart time.Time) (model.Stats, error) {
	const q = `
SELECT
  (SELECT count(*) FROM tasks),
  (SELECT count(*) FROM queries),
  (SELECT count(*) FROM queries WHERE status = 'Open'),
  (SELECT count(*) FROM queries WHERE status = 'Resolved'),
  (SELECT count(*) FROM users WHERE role = 'employee'),
  (SELECT count(*) FROM task_assignments WHERE created_at >= $1)`
	var s model.Stats
	err := r.db.Pool.QueryRow(ctx, q, dayStart).Scan(
		&s.TotalTasks, &s.TotalQueries, &s.OpenQueries, &s.ResolvedQueries,
		&s.TotalEmployees, &s.AssignmentsToday,
	)
	return s, err
}

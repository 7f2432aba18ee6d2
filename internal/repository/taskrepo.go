package repository

import (
	"context"
	"time"

	"github.com/and161185/tasktime/internal/model"
)

// TaskRepository stores tasks and their first-start assignments.
type TaskRepository interface {
	Create(ctx context.Context, t model.NewTask) (model.Task, error)
	Get(ctx context.Context, id int64) (*model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	// Assign records that userID started taskID.
	Assign(ctx context.Context, taskID, userID int64) (model.Assignment, error)
}

// QueryRepository stores queries and replies.
type QueryRepository interface {
	Create(ctx context.Context, q model.NewQuery) (model.Query, error)
	Get(ctx context.Context, id int64) (*model.Query, error)
	// List returns queries, filtered by status unless status is empty.
	List(ctx context.Context, status string) ([]model.Query, error)
	// Reply stores a reply and marks its query resolved, atomically.
	Reply(ctx context.Context, r model.NewReply) (model.QueryReply, error)
	// Replies returns replies, for one query when queryID > 0.
	Replies(ctx context.Context, queryID int64) ([]model.QueryReply, error)
}

// StatsRepository computes the superior overview.
type StatsRepository interface {
	// Stats counts assignments made since dayStart.
	Stats(ctx context.Context, dayStart time.Time) (model.Stats, error)
}

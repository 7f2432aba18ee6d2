package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
)

// TaskRepo implements TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const taskCols = `id, title, description, estimated_hours, assigned_by, is_public, created_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.EstimatedHours, &t.AssignedBy, &t.IsPublic, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a task.
func (r *TaskRepo) Create(ctx context.Context, nt model.NewTask) (model.Task, error) {
	const q = `
INSERT INTO tasks (title, description, estimated_hours, assigned_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + taskCols
	t, err := scanTask(r.db.Pool.QueryRow(ctx, q, nt.Title, nt.Description, nt.EstimatedHours, nt.AssignedBy))
	if isForeignKeyViolation(err) {
		return model.Task{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	return *t, nil
}

// Get selects a task by ID.
func (r *TaskRepo) Get(ctx context.Context, id int64) (*model.Task, error) {
	const q = `SELECT ` + taskCols + ` FROM tasks WHERE id=$1`
	return scanTask(r.db.Pool.QueryRow(ctx, q, id))
}

// List returns all tasks, newest first.
func (r *TaskRepo) List(ctx context.Context) ([]model.Task, error) {
	const q = `SELECT ` + taskCols + ` FROM tasks ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Assign inserts an assignment row. Unknown task or user yields errs.ErrNotFound.
func (r *TaskRepo) Assign(ctx context.Context, taskID, userID int64) (model.Assignment, error) {
	const q = `
INSERT INTO task_assignments (task_id, user_id)
VALUES ($1, $2)
RETURNING id, task_id, user_id, created_at`
	var a model.Assignment
	err := r.db.Pool.QueryRow(ctx, q, taskID, userID).Scan(&a.ID, &a.TaskID, &a.UserID, &a.CreatedAt)
	if isForeignKeyViolation(err) {
		return model.Assignment{}, errs.ErrNotFound
	}
	return a, err
}

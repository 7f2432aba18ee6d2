package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
)

// QueryRepo implements QueryRepository using PostgreSQL.
type QueryRepo struct{ db *DB }

// NewQueryRepo constructs a query repository.
func NewQueryRepo(db *DB) *QueryRepo { return &QueryRepo{db: db} }

const queryCols = `id, task_id, raised_by, subject, description, status, created_at`

func scanQuery(row pgx.Row) (*model.Query, error) {
	var q model.Query
	err := row.Scan(&q.ID, &q.TaskID, &q.RaisedBy, &q.Subject, &q.Description, &q.Status, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// Create inserts an open query.
func (r *QueryRepo) Create(ctx context.Context, nq model.NewQuery) (model.Query, error) {
	const q = `
INSERT INTO queries (task_id, raised_by, subject, description)
VALUES ($1, $2, $3, $4)
RETURNING ` + queryCols
	out, err := scanQuery(r.db.Pool.QueryRow(ctx, q, nq.TaskID, nq.RaisedBy, nq.Subject, nq.Description))
	if isForeignKeyViolation(err) {
		return model.Query{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Query{}, err
	}
	return *out, nil
}

// Get selects a query by ID.
func (r *QueryRepo) Get(ctx context.Context, id int64) (*model.Query, error) {
	const q = `SELECT ` + queryCols + ` FROM queries WHERE id=$1`
	return scanQuery(r.db.Pool.QueryRow(ctx, q, id))
}

// List returns queries, newest first.
func (r *QueryRepo) List(ctx context.Context, status string) ([]model.Query, error) {
	const q = `
SELECT ` + queryCols + `
FROM queries
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Query{}
	for rows.Next() {
		qq, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *qq)
	}
	return out, rows.Err()
}

// Reply inserts a reply and resolves its query in one transaction.
func (r *QueryRepo) Reply(ctx context.Context, nr model.NewReply) (reply model.QueryReply, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.QueryReply{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const upd = `UPDATE queries SET status=$2 WHERE id=$1`
	tag, err := tx.Exec(ctx, upd, nr.QueryID, model.QueryResolved)
	if err != nil {
		return model.QueryReply{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.QueryReply{}, errs.ErrNotFound
	}

	const ins = `
INSERT INTO query_replies (query_id, replied_by, message)
VALUES ($1, $2, $3)
RETURNING id, query_id, replied_by, message, created_at`
	err = tx.QueryRow(ctx, ins, nr.QueryID, nr.RepliedBy, nr.Message).
		Scan(&reply.ID, &reply.QueryID, &reply.RepliedBy, &reply.Message, &reply.CreatedAt)
	if isForeignKeyViolation(err) {
		return model.QueryReply{}, errs.ErrNotFound
	}
	if err != nil {
		return model.QueryReply{}, err
	}
	return reply, nil
}

// Replies returns replies in posting order.
func (r *QueryRepo) Replies(ctx context.Context, queryID int64) ([]model.QueryReply, error) {
	const q = `
SELECT id, query_id, replied_by, message, created_at
FROM query_replies
WHERE ($1 = 0 OR query_id = $1)
ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, q, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.QueryReply{}
	for rows.Next() {
		var rp model.QueryReply
		if err := rows.Scan(&rp.ID, &rp.QueryID, &rp.RepliedBy, &rp.Message, &rp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

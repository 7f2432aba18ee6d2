package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
)

var queryColumns = []string{"id", "task_id", "raised_by", "subject", "description", "status", "created_at"}

func TestQueryRepo_CreateAndList(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewQueryRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO queries \(task_id, raised_by, subject, description\)`).
		WithArgs(int64(5), int64(42), "Scope?", "Which quarter").
		WillReturnRows(pgxmock.NewRows(queryColumns).
			AddRow(int64(1), int64(5), int64(42), "Scope?", "Which quarter", model.QueryOpen, created))
	q, err := r.Create(ctx, model.NewQuery{TaskID: 5, RaisedBy: 42, Subject: "Scope?", Description: "Which quarter"})
	require.NoError(t, err)
	require.Equal(t, model.QueryOpen, q.Status)

	mock.ExpectQuery(`FROM queries WHERE \(\$1 = '' OR status = \$1\)`).
		WithArgs(model.QueryOpen).
		WillReturnRows(pgxmock.NewRows(queryColumns).
			AddRow(int64(1), int64(5), int64(42), "Scope?", "", model.QueryOpen, created))
	list, err := r.List(ctx, model.QueryOpen)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepo_Reply_ResolvesInTx(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewQueryRepo(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queries SET status=\$2 WHERE id=\$1`).
		WithArgs(int64(1), model.QueryResolved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO query_replies \(query_id, replied_by, message\)`).
		WithArgs(int64(1), int64(2), "Q1 only").
		WillReturnRows(pgxmock.NewRows([]string{"id", "query_id", "replied_by", "message", "created_at"}).
			AddRow(int64(3), int64(1), int64(2), "Q1 only", created))
	mock.ExpectCommit()

	rp, err := r.Reply(ctx, model.NewReply{QueryID: 1, RepliedBy: 2, Message: "Q1 only"})
	require.NoError(t, err)
	require.Equal(t, int64(3), rp.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepo_Reply_UnknownQueryRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewQueryRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queries SET status=\$2 WHERE id=\$1`).
		WithArgs(int64(9), model.QueryResolved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := r.Reply(context.Background(), model.NewReply{QueryID: 9, RepliedBy: 2, Message: "x"})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepo_Reply_InsertFailureRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewQueryRepo(db)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queries`).
		WithArgs(int64(1), model.QueryResolved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO query_replies`).
		WithArgs(int64(1), int64(2), "x").
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := r.Reply(context.Background(), model.NewReply{QueryID: 1, RepliedBy: 2, Message: "x"})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepo_Replies(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewQueryRepo(db)

	mock.ExpectQuery(`FROM query_replies WHERE \(\$1 = 0 OR query_id = \$1\) ORDER BY created_at, id`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "query_id", "replied_by", "message", "created_at"}).
			AddRow(int64(3), int64(1), int64(2), "Q1 only", created))
	list, err := r.Replies(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Q1 only", list[0].Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

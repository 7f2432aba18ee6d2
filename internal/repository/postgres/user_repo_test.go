package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
)

var created = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userColumns = []string{"id", "name", "email", "role", "password_hash", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{Name: "Ann", Email: "Ann@Example.com", Role: model.RoleEmployee, PasswordHash: "h"}

	mock.ExpectQuery(`INSERT INTO users \(name, email, role, password_hash\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id, created_at`).
		WithArgs("Ann", "ann@example.com", model.RoleEmployee, "h").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, created, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("Ann", "ann@example.com", model.RoleEmployee, "h").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, name, email, role, password_hash, created_at FROM users WHERE email=\$1`).
		WithArgs("ann@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(7), "Ann", "ann@example.com", model.RoleSuperior, "h", created))
	u, err := r.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, model.RoleSuperior, u.Role)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_PropagatesErrors(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	boom := errors.New("conn reset")
	mock.ExpectQuery(`FROM users WHERE id=\$1`).WithArgs(int64(3)).WillReturnError(boom)
	_, err := r.GetByID(context.Background(), 3)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE \(\$1 = '' OR role = \$1\) ORDER BY name, id`).
		WithArgs("employee").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(1), "Ann", "ann@example.com", model.RoleEmployee, "h", created).
			AddRow(int64(2), "Bo", "bo@example.com", model.RoleEmployee, "h", created))
	users, err := r.List(context.Background(), model.RoleEmployee)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "Bo", users[1].Name)

	mock.ExpectQuery(`FROM users`).WithArgs("").WillReturnRows(pgxmock.NewRows(userColumns))
	users, err = r.List(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	db := &DB{Pool: mock}

	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.Error(t, db.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userrepo/internal/errs"
	"userrepo/internal/model"
	"userrepo/internal/repository"
)

const selectCols = "id, username, email, full_name, age, created_at, updated_at"

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleUser() model.User {
	age := 30
	return model.NewUser("john_doe", "john@example.com", "John Doe", &age, time.Now())
}

func userRows(users ...model.User) *sqlmock.Rows {
	rows := sqlmock.NewRows(UserColumns)
	for _, u := range users {
		var age any
		if u.Age != nil {
			age = int64(*u.Age)
		}
		rows.AddRow(u.ID.String(), u.Username, u.Email, u.FullName, age, u.CreatedAt, u.UpdatedAt)
	}
	return rows
}

func TestUserPostgres_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserPostgres(db)
	ctx := context.Background()
	u := sampleUser()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(u.ID, u.Username, u.Email, u.FullName, int64(30), u.CreatedAt, u.UpdatedAt).
			WillReturnRows(userRows(u))

		result, err := repo.Create(ctx, u)

		require.NoError(t, err)
		assert.Equal(t, u.ID, result.ID)
		assert.Equal(t, 30, *result.Age)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"})

		result, err := repo.Create(ctx, u)

		assert.Nil(t, result)
		assert.True(t, errors.Is(err, errs.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failure", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(ctx, u)

		assert.True(t, errors.Is(err, errs.ErrDatabase))
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestUserPostgres_FindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserPostgres(db)
	ctx := context.Background()
	q := regexp.QuoteMeta("SELECT " + selectCols + " FROM users WHERE id = $1")

	t.Run("found", func(t *testing.T) {
		u := sampleUser()
		u.Age = nil
		mock.ExpectQuery(q).WithArgs(u.ID).WillReturnRows(userRows(u))

		found, err := repo.FindByID(ctx, u.ID)

		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, u.Username, found.Username)
		assert.Nil(t, found.Age)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(q).WithArgs(id).WillReturnError(sql.ErrNoRows)

		found, err := repo.FindByID(ctx, id)

		assert.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("driver failure", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(q).WithArgs(id).WillReturnError(errors.New("timeout"))

		_, err := repo.FindByID(ctx, id)

		assert.True(t, errors.Is(err, errs.ErrDatabase))
	})
}

func TestUserPostgres_Update(t *testing.T) {
	ctx := context.Background()
	lock := regexp.QuoteMeta("SELECT " + selectCols + " FROM users WHERE id = $1 FOR UPDATE")
	update := regexp.QuoteMeta("UPDATE users SET username = $2, email = $3, full_name = $4, age = $5, created_at = $6, updated_at = $7 WHERE id = $1 RETURNING " + selectCols)

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewUserPostgres(db)
		u := sampleUser()
		patched := u
		age := 31
		patched.Age = &age
		patched.Touch(time.Now())

		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(u.ID).WillReturnRows(userRows(u))
		mock.ExpectQuery(update).
			WithArgs(u.ID, u.Username, u.Email, u.FullName, int64(31), u.CreatedAt, sqlmock.AnyArg()).
			WillReturnRows(userRows(patched))
		mock.ExpectCommit()

		result, err := repo.Update(ctx, u.ID, func(x *model.User) error {
			a := 31
			x.Age = &a
			x.Touch(time.Now())
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 31, *result.Age)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewUserPostgres(db)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(id).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.Update(ctx, id, func(*model.User) error { return nil })

		assert.True(t, errors.Is(err, errs.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("patch error rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewUserPostgres(db)
		u := sampleUser()

		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(u.ID).WillReturnRows(userRows(u))
		mock.ExpectRollback()

		_, err := repo.Update(ctx, u.ID, func(*model.User) error { return errs.Validation("nope") })

		assert.True(t, errors.Is(err, errs.ErrValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewUserPostgres(db)
		u := sampleUser()

		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(u.ID).WillReturnRows(userRows(u))
		mock.ExpectQuery(update).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
		mock.ExpectRollback()

		_, err := repo.Update(ctx, u.ID, func(x *model.User) error {
			x.Email = "taken@example.com"
			return nil
		})

		assert.True(t, errors.Is(err, errs.ErrAlreadyExists))
		assert.Contains(t, err.Error(), "users_email_key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserPostgres_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserPostgres(db)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec("DELETE FROM users WHERE id = ?").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(ctx, id))

	mock.ExpectExec("DELETE FROM users WHERE id = ?").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(ctx, id)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY created_at ASC, id ASC LIMIT").
		WithArgs(2, 2).
		WillReturnRows(userRows(sampleUser()))

	res, err := repo.List(ctx, repository.Pagination{Page: 2, PageSize: 2})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_Find(t *testing.T) {
	db, mock := newMock(t)
	users := repository.NewUserRepository(NewUserPostgres(db))
	ctx := context.Background()

	t.Run("by username", func(t *testing.T) {
		u := sampleUser()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT " + selectCols + " FROM users WHERE username = $1 ORDER BY created_at ASC, id ASC LIMIT $2")).
			WithArgs("john_doe", 1).
			WillReturnRows(userRows(u))

		found, err := users.FindByUsername(ctx, "john_doe")

		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, u.ID, found.ID)
	})

	t.Run("by email missing", func(t *testing.T) {
		mock.ExpectQuery("WHERE email = \\$1").
			WithArgs("nobody@example.com", 1).
			WillReturnRows(sqlmock.NewRows(UserColumns))

		found, err := users.FindByEmail(ctx, "nobody@example.com")

		assert.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("by age range", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE age >= $1 AND age <= $2 ORDER BY")).
			WithArgs(20, 40).
			WillReturnRows(userRows(sampleUser(), sampleUser()))

		found, err := users.FindByAgeRange(ctx, 20, 40)

		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := users.Find(ctx, repository.Where("password", repository.OpEq, "x"))
		assert.True(t, errors.Is(err, errs.ErrInternal))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_ExistsAndCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserPostgres(db)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnError(errors.New("gone"))
	_, err = repo.Count(ctx)
	assert.True(t, errors.Is(err, errs.ErrDatabase))

	assert.NoError(t, mock.ExpectationsWereMet())
}

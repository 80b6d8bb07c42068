package postgres

import (
	"database/sql"

	"github.com/google/uuid"

	"userrepo/internal/model"
	"userrepo/internal/repository"
)

// UserPostgres is the PostgreSQL base for users.
type UserPostgres = Base[model.User, uuid.UUID]

var _ repository.UserBase = (*UserPostgres)(nil)

// UserColumns lists the users table columns in mapping order.
var UserColumns = []string{"id", "username", "email", "full_name", "age", "created_at", "updated_at"}

// UserMapper maps model.User onto the users table.
var UserMapper = Mapper[model.User, uuid.UUID]{
	Table:   "users",
	Columns: UserColumns,
	OrderBy: "created_at ASC, id ASC",
	ID:      func(u model.User) uuid.UUID { return u.ID },
	Values: func(u model.User) []any {
		var age any
		if u.Age != nil {
			age = int64(*u.Age)
		}
		return []any{u.ID, u.Username, u.Email, u.FullName, age, u.CreatedAt, u.UpdatedAt}
	},
	Scan: scanUser,
}

// NewUserPostgres creates the users table repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return NewBase(db, UserMapper)
}

func scanUser(s Scanner) (model.User, error) {
	var (
		u   model.User
		age sql.NullInt64
	)
	if err := s.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&age,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return model.User{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		u.Age = &v
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"userrepo/internal/model"
)

// UserBase is the generic contract specialised to users.
type UserBase = Base[model.User, uuid.UUID]

// UserRepository defines data access for users.
// No business logic here — uniqueness rules belong to the service layer.
type UserRepository interface {
	UserBase

	// FindByUsername returns nil, nil when no user has the username.
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail returns nil, nil when no user has the email.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByAgeRange returns users whose age is set and within [minAge, maxAge].
	FindByAgeRange(ctx context.Context, minAge, maxAge int) ([]model.User, error)
}

// userRepository wraps any UserBase. The generic operations are forwarded
// unchanged; the user lookups are expressed as queries so each backend can
// answer them its own way.
type userRepository struct {
	base UserBase
}

// NewUserRepository composes a UserRepository over base.
func NewUserRepository(base UserBase) UserRepository {
	return &userRepository{base: base}
}

func (r *userRepository) Create(ctx context.Context, u model.User) (*model.User, error) {
	return r.base.Create(ctx, u)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.base.FindByID(ctx, id)
}

func (r *userRepository) Update(ctx context.Context, id uuid.UUID, patch func(*model.User) error) (*model.User, error) {
	return r.base.Update(ctx, id, patch)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.Delete(ctx, id)
}

func (r *userRepository) List(ctx context.Context, p Pagination) (*PageResult[model.User], error) {
	return r.base.List(ctx, p)
}

func (r *userRepository) Find(ctx context.Context, q Query) ([]model.User, error) {
	return r.base.Find(ctx, q)
}

func (r *userRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.base.Exists(ctx, id)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	return r.base.Count(ctx)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, Where("username", OpEq, username).First())
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, Where("email", OpEq, email).First())
}

func (r *userRepository) FindByAgeRange(ctx context.Context, minAge, maxAge int) ([]model.User, error) {
	return r.base.Find(ctx, Where("age", OpGte, minAge).And("age", OpLte, maxAge))
}

func (r *userRepository) findOne(ctx context.Context, q Query) (*model.User, error) {
	users, err := r.base.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

package memory

import (
	"github.com/google/uuid"

	"userrepo/internal/model"
	"userrepo/internal/repository"
)

// UserStore is the in-memory base for users.
type UserStore = Store[model.User, uuid.UUID]

var _ repository.UserBase = (*UserStore)(nil)

// NewUserStore returns an empty in-memory user base.
func NewUserStore() *UserStore {
	return NewStore[model.User, uuid.UUID]()
}

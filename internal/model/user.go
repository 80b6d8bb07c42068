package model

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps are kept at microsecond precision so values survive a
// round-trip through PostgreSQL unchanged.
const timePrecision = time.Microsecond

// User is the single entity of the users bounded context.
// It carries no persistence tags; storage backends map it explicitly.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Age       *int      `json:"age,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser builds a user with a fresh v4 identifier and equal timestamps.
func NewUser(username, email, fullName string, age *int, now time.Time) User {
	ts := Timestamp(now)
	return User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		FullName:  fullName,
		Age:       copyInt(age),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// Timestamp normalizes t to UTC at storage precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(timePrecision)
}

// GetID returns the identifier.
func (u User) GetID() uuid.UUID { return u.ID }

// Clone returns a deep copy; the optional age pointer is never shared.
func (u User) Clone() User {
	u.Age = copyInt(u.Age)
	return u
}

// FieldValue exposes fields by storage name for generic queries.
// An unset optional field reports ok=false.
func (u User) FieldValue(name string) (any, bool) {
	switch name {
	case "id":
		return u.ID, true
	case "username":
		return u.Username, true
	case "email":
		return u.Email, true
	case "full_name":
		return u.FullName, true
	case "age":
		if u.Age == nil {
			return nil, false
		}
		return *u.Age, true
	case "created_at":
		return u.CreatedAt, true
	case "updated_at":
		return u.UpdatedAt, true
	}
	return nil, false
}

// Touch moves UpdatedAt forward to now, or one tick past its current value
// when the clock has not advanced.
func (u *User) Touch(now time.Time) {
	ts := Timestamp(now)
	if !ts.After(u.UpdatedAt) {
		ts = u.UpdatedAt.Add(timePrecision)
	}
	u.UpdatedAt = ts
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

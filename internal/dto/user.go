// Package dto holds the transfer objects that cross the handler boundary.
package dto

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"userrepo/internal/errs"
	"userrepo/internal/model"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 50
	EmailMaxLen    = 255
	FullNameMinLen = 2
	FullNameMaxLen = 100
	AgeMin         = 1
	AgeMax         = 150
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// CreateUserRequest carries the fields needed to register a user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Age      *int   `json:"age,omitempty"`
}

// Validate checks every field and reports all failures at once.
func (r CreateUserRequest) Validate() error {
	var problems []string
	problems = appendUsername(problems, r.Username)
	problems = appendEmail(problems, r.Email)
	problems = appendFullName(problems, r.FullName)
	problems = appendAge(problems, r.Age)
	if len(problems) > 0 {
		return errs.Validation(problems...)
	}
	return nil
}

// UpdateUserRequest carries any subset of mutable fields. Nil means unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Age      *int    `json:"age,omitempty"`
}

// Validate checks only the fields that are present.
func (r UpdateUserRequest) Validate() error {
	var problems []string
	if r.Username != nil {
		problems = appendUsername(problems, *r.Username)
	}
	if r.Email != nil {
		problems = appendEmail(problems, *r.Email)
	}
	if r.FullName != nil {
		problems = appendFullName(problems, *r.FullName)
	}
	problems = appendAge(problems, r.Age)
	if len(problems) > 0 {
		return errs.Validation(problems...)
	}
	return nil
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateUserRequest) IsEmpty() bool {
	return r.Username == nil && r.Email == nil && r.FullName == nil && r.Age == nil
}

// Apply merges the present fields into u.
func (r UpdateUserRequest) Apply(u *model.User) {
	if r.Username != nil {
		u.Username = *r.Username
	}
	if r.Email != nil {
		u.Email = *r.Email
	}
	if r.FullName != nil {
		u.FullName = *r.FullName
	}
	if r.Age != nil {
		age := *r.Age
		u.Age = &age
	}
}

// UserResponse is the outward representation of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Age       *int   `json:"age,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewUserResponse converts an entity. Timestamps are RFC 3339 in UTC.
func NewUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Age:       u.Clone().Age,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// UserListResponse is one page of users.
type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// StatisticsResponse summarizes the user population.
type StatisticsResponse struct {
	TotalUsers   int      `json:"total_users"`
	UsersWithAge int      `json:"users_with_age"`
	AverageAge   *float64 `json:"average_age,omitempty"`
}

// AgeRangeQuery selects users whose age lies in [MinAge, MaxAge].
type AgeRangeQuery struct {
	MinAge int `json:"min_age"`
	MaxAge int `json:"max_age"`
}

// Validate checks only the order of the bounds. A range reaching outside
// the storable ages simply matches fewer users.
func (q AgeRangeQuery) Validate() error {
	if q.MinAge > q.MaxAge {
		return errs.Validation("minimum age cannot be greater than maximum age")
	}
	return nil
}

func appendUsername(problems []string, v string) []string {
	n := utf8.RuneCountInString(v)
	switch {
	case strings.TrimSpace(v) == "":
		return append(problems, "username cannot be empty")
	case n < UsernameMinLen || n > UsernameMaxLen:
		return append(problems, "username must be between 3 and 50 characters")
	case !usernamePattern.MatchString(v):
		return append(problems, "username may contain only letters, digits and underscores")
	}
	return problems
}

func appendEmail(problems []string, v string) []string {
	switch {
	case !emailPattern.MatchString(v):
		return append(problems, "invalid email address")
	case utf8.RuneCountInString(v) > EmailMaxLen:
		return append(problems, "email must be at most 255 characters")
	}
	return problems
}

// The stored value is untrimmed, so the upper bound applies to v as given
// while emptiness and the lower bound ignore surrounding blanks.
func appendFullName(problems []string, v string) []string {
	trimmed := utf8.RuneCountInString(strings.TrimSpace(v))
	switch {
	case trimmed == 0:
		return append(problems, "full name cannot be empty")
	case trimmed < FullNameMinLen || utf8.RuneCountInString(v) > FullNameMaxLen:
		return append(problems, "full name must be between 2 and 100 characters")
	}
	return problems
}

func appendAge(problems []string, v *int) []string {
	if v != nil && (*v < AgeMin || *v > AgeMax) {
		return append(problems, "age must be between 1 and 150")
	}
	return problems
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"userrepo/internal/dto"
	"userrepo/internal/errs"
	"userrepo/internal/model"
	"userrepo/internal/service"
	svcMocks "userrepo/internal/service/mocks"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    Code
		message string
	}{
		{"not found", errs.NotFound("42"), CodeNotFound, "entity not found: 42"},
		{"already exists", errs.Conflict("username", "john_doe"), CodeAlreadyExists, "username 'john_doe' is already taken"},
		{"validation", errs.Validation("invalid email address"), CodeValidation, "invalid email address"},
		{"database", errs.Database("select users", errors.New("dial tcp: refused")), CodeDatabase, databaseMessage},
		{"internal", errs.Internal("bad state", nil), CodeInternal, internalMessage},
		{"unclassified", errors.New("boom"), CodeInternal, internalMessage},
		{"wrapped", fmt.Errorf("ctx: %w", errs.NotFound("7")), CodeNotFound, "ctx: entity not found: 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)

			var he *Error
			require.True(t, errors.As(got, &he))
			assert.Equal(t, tt.code, he.Code)
			assert.Equal(t, tt.message, he.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, translate(nil))
}

func TestTranslate_KeepsValidationDetails(t *testing.T) {
	err := translate(errs.Validation("username cannot be empty", "invalid email address"))

	var he *Error
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "validation failed", he.Message)
	assert.Equal(t, []string{"username cannot be empty", "invalid email address"}, he.Details)
}

func TestUserHandler_CreateUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	age := 30
	req := dto.CreateUserRequest{Username: "john_doe", Email: "john@example.com", FullName: "John Doe", Age: &age}
	u := model.NewUser(req.Username, req.Email, req.FullName, req.Age, now)

	t.Run("returns response", func(t *testing.T) {
		mSvc := new(svcMocks.MockUserService)
		mSvc.On("CreateUser", ctx, req).Return(&u, nil)
		h := NewUserHandler(mSvc)

		got, err := h.CreateUser(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), got.ID)
		assert.Equal(t, "2024-05-01T10:00:00Z", got.CreatedAt)
		assert.Equal(t, got.CreatedAt, got.UpdatedAt)
		assert.Equal(t, 30, *got.Age)
		mSvc.AssertExpectations(t)
	})

	t.Run("maps conflict", func(t *testing.T) {
		mSvc := new(svcMocks.MockUserService)
		mSvc.On("CreateUser", ctx, req).Return(nil, errs.Conflict("username", "john_doe"))
		h := NewUserHandler(mSvc)

		got, err := h.CreateUser(ctx, req)

		assert.Nil(t, got)
		assert.Equal(t, CodeAlreadyExists, CodeOf(err))
	})
}

func TestUserHandler_FindByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("absent user is nil without error", func(t *testing.T) {
		mSvc := new(svcMocks.MockUserService)
		mSvc.On("FindUser", ctx, id).Return(nil, nil)
		h := NewUserHandler(mSvc)

		got, err := h.FindByID(ctx, id.String())

		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("malformed id never reaches the service", func(t *testing.T) {
		mSvc := new(svcMocks.MockUserService)
		h := NewUserHandler(mSvc)

		_, err := h.FindByID(ctx, "not-a-uuid")

		assert.Equal(t, CodeValidation, CodeOf(err))
		mSvc.AssertNotCalled(t, "FindUser", mock.Anything, mock.Anything)
	})

	t.Run("get reports absence", func(t *testing.T) {
		mSvc := new(svcMocks.MockUserService)
		mSvc.On("GetUser", ctx, id).Return(nil, errs.NotFound(id))
		h := NewUserHandler(mSvc)

		_, err := h.GetUser(ctx, id.String())

		assert.Equal(t, CodeNotFound, CodeOf(err))
	})
}

func TestUserHandler_DeleteUser(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	mSvc := new(svcMocks.MockUserService)
	mSvc.On("DeleteUser", ctx, id).Return(nil).Once()
	mSvc.On("DeleteUser", ctx, id).Return(errs.NotFound(id)).Once()
	h := NewUserHandler(mSvc)

	assert.NoError(t, h.DeleteUser(ctx, id.String()))
	assert.Equal(t, CodeNotFound, CodeOf(h.DeleteUser(ctx, id.String())))
}

func TestUserHandler_ListUsers(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	users := []model.User{
		model.NewUser("alice_1", "alice@example.com", "Alice", nil, now),
		model.NewUser("bob_2", "bob@example.com", "Bob Builder", nil, now),
	}
	mSvc := new(svcMocks.MockUserService)
	mSvc.On("ListUsers", ctx, 1, 2).Return(&service.UserListResult{
		Items: users, Total: 3, Page: 1, PageSize: 2, TotalPages: 2,
	}, nil)
	h := NewUserHandler(mSvc)

	got, err := h.ListUsers(ctx, 1, 2)

	require.NoError(t, err)
	require.Len(t, got.Users, 2)
	assert.Equal(t, "alice_1", got.Users[0].Username)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.TotalPages)
}

func TestUserHandler_Statistics(t *testing.T) {
	ctx := context.Background()
	avg := 32.5
	mSvc := new(svcMocks.MockUserService)
	mSvc.On("Statistics", ctx).Return(&service.UserStatistics{TotalUsers: 3, UsersWithAge: 2, AverageAge: &avg}, nil).Once()
	mSvc.On("Statistics", ctx).Return(nil, errs.Database("list users", errors.New("timeout"))).Once()
	h := NewUserHandler(mSvc)

	got, err := h.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalUsers)
	assert.Equal(t, 2, got.UsersWithAge)
	assert.InDelta(t, 32.5, *got.AverageAge, 1e-9)

	_, err = h.Statistics(ctx)
	assert.Equal(t, CodeDatabase, CodeOf(err))
}

func TestUserHandler_UsersByAgeRange(t *testing.T) {
	ctx := context.Background()
	mSvc := new(svcMocks.MockUserService)
	mSvc.On("UsersByAgeRange", ctx, 40, 20).Return(nil, errs.Validation("minimum age cannot be greater than maximum age"))
	h := NewUserHandler(mSvc)

	_, err := h.UsersByAgeRange(ctx, dto.AgeRangeQuery{MinAge: 40, MaxAge: 20})

	assert.Equal(t, CodeValidation, CodeOf(err))
}

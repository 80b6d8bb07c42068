// Package handler translates transfer objects into user service calls and
// maps every failure onto a caller-facing Error.
package handler

import (
	"context"

	"github.com/google/uuid"

	"userrepo/internal/dto"
	"userrepo/internal/errs"
	"userrepo/internal/model"
	"userrepo/internal/service"
)

// UserHandler has no logic of its own beyond identifier parsing.
type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	u, err := h.svc.CreateUser(ctx, req)
	if err != nil {
		return nil, translate(err)
	}
	return respond(u), nil
}

// FindByID returns nil, nil when the user is absent.
func (h *UserHandler) FindByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, translate(err)
	}
	u, err := h.svc.FindUser(ctx, uid)
	if err != nil {
		return nil, translate(err)
	}
	return respond(u), nil
}

// GetUser is FindByID with absence reported as NOT_FOUND.
func (h *UserHandler) GetUser(ctx context.Context, id string) (*dto.UserResponse, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, translate(err)
	}
	u, err := h.svc.GetUser(ctx, uid)
	if err != nil {
		return nil, translate(err)
	}
	return respond(u), nil
}

func (h *UserHandler) FindByUsername(ctx context.Context, username string) (*dto.UserResponse, error) {
	u, err := h.svc.FindByUsername(ctx, username)
	if err != nil {
		return nil, translate(err)
	}
	return respond(u), nil
}

func (h *UserHandler) FindByEmail(ctx context.Context, email string) (*dto.UserResponse, error) {
	u, err := h.svc.FindByEmail(ctx, email)
	if err != nil {
		return nil, translate(err)
	}
	return respond(u), nil
}

func (h *UserHandler) UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, translate(err)
	}
	u, err := h.svc.UpdateUser(ctx, uid, req)
	if err != nil {
		return nil, translate(err)
	}
	return respond(u), nil
}

func (h *UserHandler) DeleteUser(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return translate(err)
	}
	return translate(h.svc.DeleteUser(ctx, uid))
}

func (h *UserHandler) ListUsers(ctx context.Context, page, pageSize int) (*dto.UserListResponse, error) {
	res, err := h.svc.ListUsers(ctx, page, pageSize)
	if err != nil {
		return nil, translate(err)
	}
	return &dto.UserListResponse{
		Users:      responses(res.Items),
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	}, nil
}

func (h *UserHandler) UsersByAgeRange(ctx context.Context, q dto.AgeRangeQuery) ([]dto.UserResponse, error) {
	users, err := h.svc.UsersByAgeRange(ctx, q.MinAge, q.MaxAge)
	if err != nil {
		return nil, translate(err)
	}
	return responses(users), nil
}

func (h *UserHandler) CountUsers(ctx context.Context) (int, error) {
	n, err := h.svc.CountUsers(ctx)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (h *UserHandler) Statistics(ctx context.Context) (*dto.StatisticsResponse, error) {
	st, err := h.svc.Statistics(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return &dto.StatisticsResponse{
		TotalUsers:   st.TotalUsers,
		UsersWithAge: st.UsersWithAge,
		AverageAge:   st.AverageAge,
	}, nil
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errs.Validation("invalid user id format")
	}
	return uid, nil
}

func respond(u *model.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	r := dto.NewUserResponse(*u)
	return &r
}

func responses(users []model.User) []dto.UserResponse {
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return out
}

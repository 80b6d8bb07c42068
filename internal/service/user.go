package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"userrepo/internal/dto"
	"userrepo/internal/errs"
	"userrepo/internal/logger"
	"userrepo/internal/metrics"
	"userrepo/internal/model"
	"userrepo/internal/repository"
)

var tracer = otel.Tracer("userrepo/internal/service")

// UserListResult is the service-level DTO for paginated users.
type UserListResult struct {
	Items      []model.User
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// UserStatistics summarizes the stored users. AverageAge is nil when no
// user has an age.
type UserStatistics struct {
	TotalUsers   int
	UsersWithAge int
	AverageAge   *float64
}

// UserService defines the use cases for managing users.
type UserService interface {
	// CreateUser validates req, rejects a taken username or email with
	// errs.KindAlreadyExists and stores a new user.
	//
	// The uniqueness check and the insert are separate repository calls, so
	// two concurrent creates with the same username can both succeed on the
	// in-memory backend. The database backend rejects the second insert
	// through its UNIQUE constraints.
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*model.User, error)

	// GetUser fails with errs.KindNotFound when the user is absent.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)

	// FindUser returns nil, nil when the user is absent.
	FindUser(ctx context.Context, id uuid.UUID) (*model.User, error)

	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ListUsers returns one page in backend order. Non-positive values select defaults.
	ListUsers(ctx context.Context, page, pageSize int) (*UserListResult, error)

	// UpdateUser merges the present fields of req and refreshes UpdatedAt.
	UpdateUser(ctx context.Context, id uuid.UUID, req dto.UpdateUserRequest) (*model.User, error)

	// DeleteUser fails with errs.KindNotFound when the user is absent.
	DeleteUser(ctx context.Context, id uuid.UUID) error

	UsersByAgeRange(ctx context.Context, minAge, maxAge int) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)

	// Statistics scans every page of the user list.
	Statistics(ctx context.Context) (*UserStatistics, error)
}

// Option configures a user service.
type Option func(*userService)

// WithLogger sets the logger used for write events.
func WithLogger(l *slog.Logger) Option {
	return func(s *userService) { s.log = l }
}

// WithMetrics sets the operation recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *userService) { s.metrics = r }
}

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *userService) { s.now = now }
}

// userService is a concrete implementation of UserService.
type userService struct {
	repo    repository.UserRepository
	log     *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewUserService constructs a new UserService.
func NewUserService(repo repository.UserRepository, opts ...Option) UserService {
	s := &userService{
		repo:    repo,
		log:     logger.Discard(),
		metrics: metrics.NewNoop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (_ *model.User, err error) {
	ctx, done := s.observe(ctx, "create_user", attribute.String("user.username", req.Username))
	defer func() { done(err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflict("username", req.Username)
	}

	existing, err = s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflict("email", req.Email)
	}

	u := model.NewUser(req.Username, req.Email, req.FullName, req.Age, s.now())
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user_created",
		slog.String("user_id", created.ID.String()),
		slog.String("username", created.Username),
	)
	return created, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (_ *model.User, err error) {
	ctx, done := s.observe(ctx, "get_user", attribute.String("user.id", id.String()))
	defer func() { done(err) }()

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.NotFound(id)
	}
	return u, nil
}

func (s *userService) FindUser(ctx context.Context, id uuid.UUID) (_ *model.User, err error) {
	ctx, done := s.observe(ctx, "find_user", attribute.String("user.id", id.String()))
	defer func() { done(err) }()

	return s.repo.FindByID(ctx, id)
}

func (s *userService) FindByUsername(ctx context.Context, username string) (_ *model.User, err error) {
	ctx, done := s.observe(ctx, "find_by_username")
	defer func() { done(err) }()

	if username == "" {
		return nil, errs.Validation("username cannot be empty")
	}
	return s.repo.FindByUsername(ctx, username)
}

func (s *userService) FindByEmail(ctx context.Context, email string) (_ *model.User, err error) {
	ctx, done := s.observe(ctx, "find_by_email")
	defer func() { done(err) }()

	if email == "" {
		return nil, errs.Validation("email cannot be empty")
	}
	return s.repo.FindByEmail(ctx, email)
}

func (s *userService) ListUsers(ctx context.Context, page, pageSize int) (_ *UserListResult, err error) {
	ctx, done := s.observe(ctx, "list_users")
	defer func() { done(err) }()

	p := repository.Pagination{Page: page, PageSize: pageSize}.Normalize()
	res, err := s.repo.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return &UserListResult{
		Items:      res.Items,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	}, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req dto.UpdateUserRequest) (_ *model.User, err error) {
	ctx, done := s.observe(ctx, "update_user", attribute.String("user.id", id.String()))
	defer func() { done(err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.NotFound(id)
	}

	if req.Username != nil && *req.Username != existing.Username {
		if err := s.ensureFree(ctx, id, "username", *req.Username, s.repo.FindByUsername); err != nil {
			return nil, err
		}
	}
	if req.Email != nil && *req.Email != existing.Email {
		if err := s.ensureFree(ctx, id, "email", *req.Email, s.repo.FindByEmail); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, id, func(u *model.User) error {
		req.Apply(u)
		u.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user_updated", slog.String("user_id", id.String()))
	return updated, nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) (err error) {
	ctx, done := s.observe(ctx, "delete_user", attribute.String("user.id", id.String()))
	defer func() { done(err) }()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user_deleted", slog.String("user_id", id.String()))
	return nil
}

func (s *userService) UsersByAgeRange(ctx context.Context, minAge, maxAge int) (_ []model.User, err error) {
	ctx, done := s.observe(ctx, "users_by_age_range",
		attribute.Int("age.min", minAge),
		attribute.Int("age.max", maxAge),
	)
	defer func() { done(err) }()

	if err := (dto.AgeRangeQuery{MinAge: minAge, MaxAge: maxAge}).Validate(); err != nil {
		return nil, err
	}
	return s.repo.FindByAgeRange(ctx, minAge, maxAge)
}

func (s *userService) CountUsers(ctx context.Context) (_ int, err error) {
	ctx, done := s.observe(ctx, "count_users")
	defer func() { done(err) }()

	return s.repo.Count(ctx)
}

func (s *userService) Statistics(ctx context.Context) (_ *UserStatistics, err error) {
	ctx, done := s.observe(ctx, "statistics")
	defer func() { done(err) }()

	var (
		stats UserStatistics
		ages  int
	)
	p := repository.Pagination{Page: 1, PageSize: repository.MaxPageSize}
	for {
		res, err := s.repo.List(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, u := range res.Items {
			stats.TotalUsers++
			if u.Age != nil {
				stats.UsersWithAge++
				ages += *u.Age
			}
		}
		if len(res.Items) < p.PageSize || p.Page >= res.TotalPages {
			break
		}
		p.Page++
	}

	if stats.UsersWithAge > 0 {
		avg := float64(ages) / float64(stats.UsersWithAge)
		stats.AverageAge = &avg
	}
	return &stats, nil
}

// ensureFree fails with errs.KindAlreadyExists when another user holds value.
func (s *userService) ensureFree(
	ctx context.Context,
	self uuid.UUID,
	field, value string,
	find func(context.Context, string) (*model.User, error),
) error {
	other, err := find(ctx, value)
	if err != nil {
		return err
	}
	if other != nil && other.ID != self {
		return errs.Conflict(field, value)
	}
	return nil
}

// observe opens a span for operation and returns the function that closes
// it and records the outcome.
func (s *userService) observe(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "UserService."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.kind", errs.KindOf(err).String()))
		}
		span.End()
		s.metrics.ObserveOperation(operation, err, time.Since(start))
	}
}

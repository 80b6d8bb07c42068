// Package app exposes the Users bounded context through one facade whose
// storage backend is chosen once, at construction.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"userrepo/internal/config"
	"userrepo/internal/database"
	"userrepo/internal/database/migration"
	"userrepo/internal/dto"
	"userrepo/internal/handler"
	"userrepo/internal/logger"
	"userrepo/internal/metrics"
	"userrepo/internal/repository"
	"userrepo/internal/repository/memory"
	"userrepo/internal/repository/postgres"
	"userrepo/internal/service"
)

// Kind names a storage backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindPostgres Kind = "postgres"
)

// backend is implemented only by the types in this file.
type backend interface {
	backendKind() Kind
}

type memoryBackend struct {
	store *memory.UserStore
	users *handler.UserHandler
}

func (*memoryBackend) backendKind() Kind { return KindMemory }

type postgresBackend struct {
	db    *sql.DB
	users *handler.UserHandler
}

func (*postgresBackend) backendKind() Kind { return KindPostgres }

// App is the single entry point for user operations.
type App struct {
	backend backend
	log     *slog.Logger
}

type options struct {
	log     *slog.Logger
	metrics metrics.Recorder
	db      *sql.DB
}

// Option configures New.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithDB supplies an open database handle instead of connecting from config.
// App takes ownership and closes it in Close.
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// New builds the facade for the backend selected by cfg.UsePostgres.
// For the database backend the schema is migrated when cfg.Database.AutoMigrate is set.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	o := options{log: logger.Discard(), metrics: metrics.NewNoop()}
	for _, opt := range opts {
		opt(&o)
	}
	svcOpts := []service.Option{service.WithLogger(o.log), service.WithMetrics(o.metrics)}

	if !cfg.UsePostgres {
		return newMemory(o, svcOpts), nil
	}

	db := o.db
	if db == nil {
		var err error
		if db, err = database.Open(ctx, cfg.Database); err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}
	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, o.log); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	repo := repository.NewUserRepository(postgres.NewUserPostgres(db))
	a := &App{
		backend: &postgresBackend{
			db:    db,
			users: handler.NewUserHandler(service.NewUserService(repo, svcOpts...)),
		},
		log: o.log,
	}
	a.log.Info("app_ready", slog.String("backend", string(KindPostgres)))
	return a, nil
}

// NewMemory builds an in-memory facade.
func NewMemory(opts ...Option) *App {
	o := options{log: logger.Discard(), metrics: metrics.NewNoop()}
	for _, opt := range opts {
		opt(&o)
	}
	return newMemory(o, []service.Option{service.WithLogger(o.log), service.WithMetrics(o.metrics)})
}

func newMemory(o options, svcOpts []service.Option) *App {
	store := memory.NewUserStore()
	repo := repository.NewUserRepository(store)
	a := &App{
		backend: &memoryBackend{
			store: store,
			users: handler.NewUserHandler(service.NewUserService(repo, svcOpts...)),
		},
		log: o.log,
	}
	a.log.Info("app_ready", slog.String("backend", string(KindMemory)))
	return a
}

// Kind reports the selected backend.
func (a *App) Kind() Kind { return a.backend.backendKind() }

func (a *App) users() *handler.UserHandler {
	switch b := a.backend.(type) {
	case *memoryBackend:
		return b.users
	case *postgresBackend:
		return b.users
	default:
		panic(fmt.Sprintf("app: unknown backend %T", b))
	}
}

// Ping reports whether the backend can serve requests.
func (a *App) Ping(ctx context.Context) error {
	switch b := a.backend.(type) {
	case *memoryBackend:
		return nil
	case *postgresBackend:
		return b.db.PingContext(ctx)
	default:
		return fmt.Errorf("app: unknown backend %T", b)
	}
}

// Close releases the backend. The in-memory store is emptied.
func (a *App) Close() error {
	switch b := a.backend.(type) {
	case *memoryBackend:
		b.store.Clear()
		return nil
	case *postgresBackend:
		return b.db.Close()
	default:
		return fmt.Errorf("app: unknown backend %T", b)
	}
}

func (a *App) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	return a.users().CreateUser(ctx, req)
}

// FindByID returns nil, nil when the user is absent.
func (a *App) FindByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	return a.users().FindByID(ctx, id)
}

func (a *App) GetUser(ctx context.Context, id string) (*dto.UserResponse, error) {
	return a.users().GetUser(ctx, id)
}

func (a *App) FindByUsername(ctx context.Context, username string) (*dto.UserResponse, error) {
	return a.users().FindByUsername(ctx, username)
}

func (a *App) FindByEmail(ctx context.Context, email string) (*dto.UserResponse, error) {
	return a.users().FindByEmail(ctx, email)
}

func (a *App) UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	return a.users().UpdateUser(ctx, id, req)
}

func (a *App) DeleteUser(ctx context.Context, id string) error {
	return a.users().DeleteUser(ctx, id)
}

func (a *App) ListUsers(ctx context.Context, page, pageSize int) (*dto.UserListResponse, error) {
	return a.users().ListUsers(ctx, page, pageSize)
}

func (a *App) UsersByAgeRange(ctx context.Context, minAge, maxAge int) ([]dto.UserResponse, error) {
	return a.users().UsersByAgeRange(ctx, dto.AgeRangeQuery{MinAge: minAge, MaxAge: maxAge})
}

func (a *App) CountUsers(ctx context.Context) (int, error) {
	return a.users().CountUsers(ctx)
}

func (a *App) Statistics(ctx context.Context) (*dto.StatisticsResponse, error) {
	return a.users().Statistics(ctx)
}

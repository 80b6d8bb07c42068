package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"userrepo/internal/app"
	"userrepo/internal/dto"
	"userrepo/internal/handler"
)

var demoUsers = []dto.CreateUserRequest{
	{Username: "john_doe", Email: "john@example.com", FullName: "John Doe", Age: intPtr(30)},
	{Username: "jane_smith", Email: "jane@example.com", FullName: "Jane Smith", Age: intPtr(25)},
	{Username: "bob_wilson", Email: "bob@example.com", FullName: "Bob Wilson", Age: intPtr(35)},
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func newDemoCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:     "demo",
		Aliases: []string{"cli"},
		Short:   "Walk through every user operation on a throwaway in-memory repository",
		Long: `demo creates, reads, updates and deletes sample users and logs each step.
It always runs on a fresh in-memory store, so USE_POSTGRES is ignored and no
database is touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, d)
			if err != nil {
				return err
			}
			if cfg.UsePostgres {
				log.Warn("demo_ignores_postgres", slog.String("backend", string(app.KindMemory)))
			}

			users := app.NewMemory(app.WithLogger(log))
			defer users.Close()
			return walkthrough(cmd.Context(), users, log)
		},
	}
}

// walkthrough exercises every facade operation once and logs the outcome.
// It expects an empty repository.
func walkthrough(ctx context.Context, users *app.App, log *slog.Logger) error {
	log = log.With(slog.String("component", "walkthrough"))

	created := make([]*dto.UserResponse, 0, len(demoUsers))
	for _, req := range demoUsers {
		u, err := users.CreateUser(ctx, req)
		if err != nil {
			return fmt.Errorf("create %s: %w", req.Username, err)
		}
		log.Info("user_created", slog.String("username", u.Username), slog.String("id", u.ID))
		created = append(created, u)
	}
	john, bob := created[0], created[2]

	_, err := users.CreateUser(ctx, dto.CreateUserRequest{
		Username: "john_doe",
		Email:    "different@example.com",
		FullName: "Different User",
		Age:      intPtr(40),
	})
	if handler.CodeOf(err) != handler.CodeAlreadyExists {
		return fmt.Errorf("duplicate username: expected %s, got %v", handler.CodeAlreadyExists, err)
	}
	log.Info("duplicate_rejected", slog.String("error", err.Error()))

	got, err := users.GetUser(ctx, john.ID)
	if err != nil {
		return err
	}
	log.Info("user_fetched", slog.String("full_name", got.FullName), slog.String("email", got.Email))

	jane, err := users.FindByUsername(ctx, "jane_smith")
	if err != nil {
		return err
	}
	if jane != nil {
		log.Info("user_found_by_username", slog.String("full_name", jane.FullName), slog.String("email", jane.Email))
	}

	page, err := users.ListUsers(ctx, 1, 0)
	if err != nil {
		return err
	}
	log.Info("users_listed", slog.Int("total", page.Total))
	for _, u := range page.Users {
		log.Info("user_listed", slog.String("username", u.Username), slog.Any("age", u.Age))
	}

	updated, err := users.UpdateUser(ctx, john.ID, dto.UpdateUserRequest{
		Email:    strPtr("john.doe.updated@example.com"),
		FullName: strPtr("John Doe Updated"),
		Age:      intPtr(31),
	})
	if err != nil {
		return err
	}
	log.Info("user_updated", slog.String("full_name", updated.FullName), slog.String("email", updated.Email))

	inRange, err := users.UsersByAgeRange(ctx, 25, 32)
	if err != nil {
		return err
	}
	log.Info("users_in_age_range", slog.Int("min", 25), slog.Int("max", 32), slog.Int("count", len(inRange)))

	stats, err := users.Statistics(ctx)
	if err != nil {
		return err
	}
	attrs := []any{slog.Int("total_users", stats.TotalUsers), slog.Int("users_with_age", stats.UsersWithAge)}
	if stats.AverageAge != nil {
		attrs = append(attrs, slog.String("average_age", fmt.Sprintf("%.1f", *stats.AverageAge)))
	}
	log.Info("user_statistics", attrs...)

	if err := users.DeleteUser(ctx, bob.ID); err != nil {
		return err
	}
	remaining, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	log.Info("user_deleted", slog.String("username", bob.Username), slog.Int("remaining", remaining))

	_, err = users.GetUser(ctx, bob.ID)
	var he *handler.Error
	if !errors.As(err, &he) || he.Code != handler.CodeNotFound {
		return fmt.Errorf("deleted user: expected %s, got %v", handler.CodeNotFound, err)
	}
	log.Info("deleted_user_absent", slog.String("error", err.Error()))

	log.Info("walkthrough_complete")
	return nil
}

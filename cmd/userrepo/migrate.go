package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"userrepo/internal/config"
	"userrepo/internal/database/migration"
)

var errNeedsPostgres = errors.New("migrations need the postgres backend: set USE_POSTGRES=true")

func newMigrateCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, d)
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), d, cfg, func(db *sql.DB) error {
				n, err := migration.NewRunner(db, log).Up(cmd.Context(), migration.All())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(newMigrateStatusCmd(d), newMigrateListCmd())
	return cmd
}

func newMigrateStatusCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied, pending or edited since applying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, d)
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), d, cfg, func(db *sql.DB) error {
				statuses, err := migration.NewRunner(db, log).Status(cmd.Context(), migration.All())
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), statuses, cfg.Location())
				return nil
			})
		},
	}
}

func newMigrateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known migrations without connecting to a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderList(cmd.OutOrStdout(), migration.All())
			return nil
		},
	}
}

func withDB(ctx context.Context, d deps, cfg *config.AppConfig, fn func(*sql.DB) error) error {
	if !cfg.UsePostgres {
		return errNeedsPostgres
	}
	db, err := d.openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newTable(w io.Writer, headers ...string) *table.Table {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

func renderStatus(w io.Writer, statuses []migration.Status, loc *time.Location) {
	t := newTable(w, "ID", "NAME", "STATE", "APPLIED AT", "TOOK")
	pending := 0
	for _, st := range statuses {
		state, at, took := "pending", "-", "-"
		switch {
		case st.Drifted:
			state = "edited"
		case !st.Applied:
			pending++
		default:
			state = "applied"
		}
		if st.Applied {
			at = st.AppliedAt.In(loc).Format(time.RFC3339)
			took = st.ExecutionTime.String()
		}
		t.Row(st.ID(), st.Name, state, at, took)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d migration(s), %d pending\n", len(statuses), pending)
}

func renderList(w io.Writer, migrations []migration.Migration) {
	t := newTable(w, "ID", "MODULE", "VERSION", "NAME", "CHECKSUM")
	for _, m := range migrations {
		t.Row(m.ID(), m.Module, strconv.Itoa(m.Version), m.Name, m.Checksum()[:12])
	}
	fmt.Fprintln(w, t.Render())
}

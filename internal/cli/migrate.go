package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/Lownheur/prjt-web/internal/config"
)

// NewMigrateCmd applies goose migrations to the database named by PG_*.
func NewMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			migrationDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolve migration directory: %w", err)
			}
			if _, err := os.Stat(migrationDir); err != nil {
				return fmt.Errorf("migration directory: %w", err)
			}

			pg, err := config.LoadPostgres()
			if err != nil {
				return err
			}
			db, err := sql.Open("pgx", pg.DSN())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}

			return runMigration(cmd, db, command, migrationDir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "db/migrations", "directory containing migration files")
	return cmd
}

func runMigration(cmd *cobra.Command, db *sql.DB, command, dir string) error {
	goose.SetTableName("goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	ctx := cmd.Context()
	switch command {
	case "up":
		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	case "down":
		if err := goose.DownContext(ctx, db, dir); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
	case "status":
		if err := goose.StatusContext(ctx, db, dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
	default:
		return fmt.Errorf("unknown migrate command %q (use up, down or status)", command)
	}
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Lownheur/prjt-web/internal/config"
	"github.com/Lownheur/prjt-web/internal/db/repository"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

// NewImportCmd stores a quiz file in Postgres.
func NewImportCmd() *cobra.Command {
	var (
		owner     string
		private   bool
		redisAddr string
	)

	cmd := &cobra.Command{
		Use:   "import <quiz.yaml>",
		Short: "Import a quiz file into the database (PG_* environment)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("parse owner: %w", err)
			}
			pack, err := quiz.ReadPackFile(args[0])
			if err != nil {
				return err
			}
			pack.Quiz.OwnerID = ownerID
			pack.Quiz.IsPublic = !private

			pg, err := config.LoadPostgres()
			if err != nil {
				return err
			}
			pool, err := pgxpool.New(cmd.Context(), pg.DSN())
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := repository.NewPackImporter(pool).Import(cmd.Context(), pack, ownerID); err != nil {
				return err
			}
			if redisAddr != "" {
				client := redis.NewClient(&redis.Options{Addr: redisAddr})
				defer client.Close()
				if err := quiz.NewCache(client, 0).Invalidate(cmd.Context(), pack.Quiz.ID); err != nil {
					return fmt.Errorf("invalidate cached quiz: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s (%d questions)\n", pack.Quiz.Title, pack.Quiz.ID, len(pack.Questions))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner player id (required)")
	cmd.Flags().BoolVar(&private, "private", false, "only the owner may play the quiz")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "drop the cached copy of the quiz from this Redis")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

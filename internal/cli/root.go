package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds quizctl with all subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizctl",
		Short:         "Play, inspect and manage timed quizzes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			return godotenv.Load(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file to load before running")
	cmd.AddCommand(NewPlayCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

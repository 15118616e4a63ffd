package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Lownheur/prjt-web/internal/quiz"
)

// NewInspectCmd prints a quiz file with its answers.
func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <quiz.yaml>",
		Short: "Validate a quiz file and print its questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := quiz.ReadPackFile(args[0])
			if err != nil {
				return err
			}
			printPack(cmd.OutOrStdout(), pack)
			return nil
		},
	}
}

func printPack(out io.Writer, pack quiz.Pack) {
	fmt.Fprintf(out, "%s (%s)\n", pack.Quiz.Title, pack.Quiz.ID)
	if pack.Quiz.Description != "" {
		fmt.Fprintln(out, pack.Quiz.Description)
	}
	fmt.Fprintf(out, "%d questions\n", len(pack.Questions))
	for _, q := range pack.Questions {
		fmt.Fprintf(out, "  %d. [%s] %s -> %s\n", q.Order, q.Type, q.Text, q.CorrectAnswer)
		for i, choice := range q.Choices {
			fmt.Fprintf(out, "       %c) %s\n", 'A'+i, choice)
		}
	}
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Lownheur/prjt-web/internal/play"
	"github.com/Lownheur/prjt-web/internal/play/clock"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

// NewPlayCmd plays a YAML quiz in the terminal.
func NewPlayCmd() *cobra.Command {
	var (
		mode        string
		total       int
		perQuestion int
	)

	cmd := &cobra.Command{
		Use:   "play <quiz.yaml>",
		Short: "Play a quiz from a YAML file against the clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := quiz.ReadPackFile(args[0])
			if err != nil {
				return err
			}
			m, err := play.ParseMode(mode)
			if err != nil {
				return err
			}
			cfg := play.TimeConfig{Mode: m, TotalSeconds: total, PerQuestionSeconds: perQuestion}

			_, err = runPlay(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), pack, cfg, clock.SystemScheduler)
			return err
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "aggregate", "timing mode: aggregate or per_question")
	cmd.Flags().IntVar(&total, "total", 600, "seconds for the whole quiz in aggregate mode")
	cmd.Flags().IntVar(&perQuestion, "per-question", 30, "seconds per question in per_question mode")
	return cmd
}

// terminal queues session events for the input loop.
type terminal struct {
	events chan play.Event
}

func (t *terminal) Notify(ev play.Event) {
	t.events <- ev
}

// runPlay runs one session, reading one answer per input line. Closing the
// input abandons the session.
func runPlay(ctx context.Context, in io.Reader, out io.Writer, pack quiz.Pack, cfg play.TimeConfig, sched clock.Scheduler) (play.ScoreReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	term := &terminal{events: make(chan play.Event, 16)}
	svc := play.NewService(
		quiz.NewService(quiz.NewStaticLoader(pack), nil, zerolog.Nop()),
		nil,
		nil,
		nil,
		play.ServiceOptions{Scheduler: sched, DefaultConfig: cfg},
		zerolog.Nop(),
	)
	svc.Subscribe(term)

	playerID := uuid.New()
	session, err := svc.Start(ctx, play.StartRequest{PlayerID: playerID, QuizID: pack.Quiz.ID, Config: cfg})
	if err != nil {
		return play.ScoreReport{}, err
	}

	var (
		current *play.QuestionView
		report  *play.ScoreReport
	)
	handle := func(ev play.Event) {
		switch ev.Kind {
		case play.EventStarted:
			fmt.Fprintf(out, "%s: %d questions, %s\n", pack.Quiz.Title, ev.Total, describeConfig(ev.Config))
		case play.EventQuestionChanged:
			current = ev.Question
			printQuestion(out, current, ev.Remaining)
		case play.EventTick:
			if ev.Remaining > 0 && (ev.Remaining <= 5 || ev.Remaining%30 == 0) {
				fmt.Fprintf(out, "  %ds left\n", ev.Remaining)
			}
		case play.EventFinished:
			report = ev.Report
			printReport(out, *report)
		}
	}
	// Start and Submit deliver their events before returning, so draining
	// here keeps the next line aimed at the question just shown.
	drain := func() {
		for {
			select {
			case ev := <-term.events:
				handle(ev)
			default:
				return
			}
		}
	}
	drain()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for report == nil {
		select {
		case <-ctx.Done():
			_ = svc.Abandon(context.Background(), session.ID, playerID)
			ctx = context.Background()
		case ev := <-term.events:
			handle(ev)
		case line, ok := <-lines:
			if !ok {
				lines = nil
				_ = svc.Abandon(context.Background(), session.ID, playerID)
				continue
			}
			if current == nil {
				continue
			}
			err := svc.Submit(context.Background(), session.ID, playerID, current.ID, resolveChoice(current, line))
			switch {
			case err == nil:
			case errors.Is(err, play.ErrAlreadyAnswered), errors.Is(err, play.ErrQuestionMismatch):
				fmt.Fprintln(out, "  too late for that question")
			case errors.Is(err, play.ErrSessionFinished), errors.Is(err, play.ErrSessionNotFound), errors.Is(err, play.ErrNotInProgress):
			default:
				return play.ScoreReport{}, fmt.Errorf("submit answer: %w", err)
			}
			drain()
		}
	}
	return *report, nil
}

// resolveChoice lets players answer multiple-choice questions by letter.
func resolveChoice(q *play.QuestionView, line string) string {
	answer := strings.TrimSpace(line)
	if q.Type != quiz.TypeMultipleChoice || len(answer) != 1 {
		return answer
	}
	idx := int(strings.ToUpper(answer)[0] - 'A')
	if idx >= 0 && idx < len(q.Choices) {
		return q.Choices[idx]
	}
	return answer
}

func describeConfig(cfg play.TimeConfig) string {
	if cfg.Mode == play.ModePerQuestion {
		return fmt.Sprintf("%ds per question", cfg.PerQuestionSeconds)
	}
	return fmt.Sprintf("%ds in total", cfg.TotalSeconds)
}

func printQuestion(out io.Writer, q *play.QuestionView, remaining int) {
	fmt.Fprintf(out, "\n[%d/%d] %s (%ds)\n", q.Index+1, q.Total, q.Text, remaining)
	for i, choice := range q.Choices {
		fmt.Fprintf(out, "  %c) %s\n", 'A'+i, choice)
	}
	fmt.Fprint(out, "> ")
}

func printReport(out io.Writer, r play.ScoreReport) {
	fmt.Fprintf(out, "\n%s: %d/%d correct (%d%%), %d points in %ds\n",
		r.EndReason, r.CorrectCount, r.TotalQuestions, r.Percentage, r.Points, r.ElapsedSeconds)
	for i, item := range r.Breakdown {
		given, mark := "-", "x"
		if item.Answer != nil {
			given = item.Answer.GivenAnswer
			if item.Answer.IsCorrect {
				mark = "ok"
			}
		}
		fmt.Fprintf(out, "  %2d. %-3s %s | yours: %q | answer: %s\n", i+1, mark, item.Question.Text, given, item.Question.CorrectAnswer)
	}
}

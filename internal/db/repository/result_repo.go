package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Lownheur/prjt-web/internal/db/queries"
	"github.com/Lownheur/prjt-web/internal/play"
)

type resultStore interface {
	InsertSessionResult(ctx context.Context, arg queries.InsertSessionResultParams) error
	ListPlayerResults(ctx context.Context, arg queries.ListPlayerResultsParams) ([]queries.SessionResult, error)
}

// ResultRepository stores finished session reports. It is a play.ResultSink
// and serves a player's result history.
type ResultRepository struct {
	store resultStore
}

var (
	_ play.ResultSink    = (*ResultRepository)(nil)
	_ play.ResultHistory = (*ResultRepository)(nil)
)

func NewResultRepository(store resultStore) *ResultRepository {
	return &ResultRepository{store: store}
}

// storedAnswer is one element of the answers JSONB column.
type storedAnswer struct {
	QuestionID       string       `json:"question_id"`
	GivenAnswer      string       `json:"given_answer"`
	CorrectAnswer    string       `json:"correct_answer"`
	IsCorrect        bool         `json:"is_correct"`
	TimeSpentSeconds *int         `json:"time_spent_seconds,omitempty"`
	Trigger          play.Trigger `json:"trigger"`
}

// RecordSession inserts the report; replays of the same session are ignored.
func (r *ResultRepository) RecordSession(ctx context.Context, report play.ScoreReport) error {
	if report.Abandoned {
		return nil
	}

	answers := make([]storedAnswer, 0, report.AnsweredCount)
	for _, item := range report.Breakdown {
		if item.Answer == nil {
			continue
		}
		answers = append(answers, storedAnswer{
			QuestionID:       item.Answer.QuestionID,
			GivenAnswer:      item.Answer.GivenAnswer,
			CorrectAnswer:    item.Question.CorrectAnswer,
			IsCorrect:        item.Answer.IsCorrect,
			TimeSpentSeconds: item.Answer.TimeSpentSeconds,
			Trigger:          item.Answer.Trigger,
		})
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	err = r.store.InsertSessionResult(ctx, queries.InsertSessionResultParams{
		SessionID:      pgUUID(report.SessionID),
		QuizID:         pgUUID(report.QuizID),
		PlayerID:       pgUUID(report.PlayerID),
		Mode:           string(report.Mode),
		TotalQuestions: int32(report.TotalQuestions),
		AnsweredCount:  int32(report.AnsweredCount),
		CorrectCount:   int32(report.CorrectCount),
		Percentage:     int32(report.Percentage),
		Points:         int32(report.Points),
		MaxStreak:      int32(report.MaxStreak),
		ElapsedSeconds: int32(report.ElapsedSeconds),
		EndReason:      string(report.EndReason),
		Answers:        data,
		StartedAt:      pgTime(report.StartedAt),
		FinishedAt:     pgTime(report.FinishedAt),
	})
	if err != nil {
		return fmt.Errorf("insert session result: %w", err)
	}
	return nil
}

// ListPlayerResults returns the player's most recent results first.
func (r *ResultRepository) ListPlayerResults(ctx context.Context, playerID uuid.UUID, limit int) ([]play.ResultSummary, error) {
	rows, err := r.store.ListPlayerResults(ctx, queries.ListPlayerResultsParams{
		PlayerID: pgUUID(playerID),
		Limit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list player results: %w", err)
	}

	results := make([]play.ResultSummary, 0, len(rows))
	for _, row := range rows {
		results = append(results, play.ResultSummary{
			SessionID:      uuid.UUID(row.SessionID.Bytes),
			QuizID:         uuid.UUID(row.QuizID.Bytes),
			Mode:           play.Mode(row.Mode),
			TotalQuestions: int(row.TotalQuestions),
			CorrectCount:   int(row.CorrectCount),
			Percentage:     int(row.Percentage),
			Points:         int(row.Points),
			EndReason:      play.EndReason(row.EndReason),
			ElapsedSeconds: int(row.ElapsedSeconds),
			FinishedAt:     row.FinishedAt.Time,
		})
	}
	return results, nil
}

func pgTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

package queries

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type QuizzTheme struct {
	ID            pgtype.UUID        `json:"id"`
	UserID        pgtype.UUID        `json:"user_id"`
	Title         string             `json:"title"`
	Description   pgtype.Text        `json:"description"`
	IsPublic      bool               `json:"is_public"`
	QuestionCount int32              `json:"question_count"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type QuizzQuestion struct {
	ID               pgtype.UUID `json:"id"`
	QuizzID          pgtype.UUID `json:"quizz_id"`
	QuestionText     string      `json:"question_text"`
	QuestionImageUrl pgtype.Text `json:"question_image_url"`
	QuestionType     string      `json:"question_type"`
	CorrectAnswer    string      `json:"correct_answer"`
	ChoiceA          pgtype.Text `json:"choice_a"`
	ChoiceB          pgtype.Text `json:"choice_b"`
	ChoiceC          pgtype.Text `json:"choice_c"`
	ChoiceD          pgtype.Text `json:"choice_d"`
	OrderIndex       int32       `json:"order_index"`
}

type SessionResult struct {
	SessionID      pgtype.UUID        `json:"session_id"`
	QuizID         pgtype.UUID        `json:"quiz_id"`
	PlayerID       pgtype.UUID        `json:"player_id"`
	Mode           string             `json:"mode"`
	TotalQuestions int32              `json:"total_questions"`
	AnsweredCount  int32              `json:"answered_count"`
	CorrectCount   int32              `json:"correct_count"`
	Percentage     int32              `json:"percentage"`
	Points         int32              `json:"points"`
	MaxStreak      int32              `json:"max_streak"`
	ElapsedSeconds int32              `json:"elapsed_seconds"`
	EndReason      string             `json:"end_reason"`
	Answers        []byte             `json:"answers"`
	StartedAt      pgtype.Timestamptz `json:"started_at"`
	FinishedAt     pgtype.Timestamptz `json:"finished_at"`
}

type LeaderboardSnapshot struct {
	ID             int64              `json:"id"`
	QuizID         pgtype.UUID        `json:"quiz_id"`
	PlayerID       pgtype.UUID        `json:"player_id"`
	Rank           int32              `json:"rank"`
	Points         int32              `json:"points"`
	BestPercentage int32              `json:"best_percentage"`
	Sessions       int32              `json:"sessions"`
	CapturedAt     pgtype.Timestamptz `json:"captured_at"`
}

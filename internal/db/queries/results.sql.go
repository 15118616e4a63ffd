package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertSessionResult = `-- name: InsertSessionResult :exec
INSERT INTO session_results (
    session_id, quiz_id, player_id, mode, total_questions, answered_count, correct_count,
    percentage, points, max_streak, elapsed_seconds, end_reason, answers, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (session_id) DO NOTHING
`

type InsertSessionResultParams struct {
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

func (q *Queries) InsertSessionResult(ctx context.Context, arg InsertSessionResultParams) error {
	_, err := q.db.Exec(ctx, insertSessionResult,
		arg.SessionID,
		arg.QuizID,
		arg.PlayerID,
		arg.Mode,
		arg.TotalQuestions,
		arg.AnsweredCount,
		arg.CorrectCount,
		arg.Percentage,
		arg.Points,
		arg.MaxStreak,
		arg.ElapsedSeconds,
		arg.EndReason,
		arg.Answers,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const listPlayerResults = `-- name: ListPlayerResults :many
SELECT session_id, quiz_id, player_id, mode, total_questions, answered_count, correct_count,
       percentage, points, max_streak, elapsed_seconds, end_reason, answers, started_at, finished_at
FROM session_results
WHERE player_id = $1
ORDER BY finished_at DESC
LIMIT $2
`

type ListPlayerResultsParams struct {
	PlayerID pgtype.UUID `json:"player_id"`
	Limit    int32       `json:"limit"`
}

func (q *Queries) ListPlayerResults(ctx context.Context, arg ListPlayerResultsParams) ([]SessionResult, error) {
	rows, err := q.db.Query(ctx, listPlayerResults, arg.PlayerID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SessionResult
	for rows.Next() {
		var i SessionResult
		if err := rows.Scan(
			&i.SessionID,
			&i.QuizID,
			&i.PlayerID,
			&i.Mode,
			&i.TotalQuestions,
			&i.AnsweredCount,
			&i.CorrectCount,
			&i.Percentage,
			&i.Points,
			&i.MaxStreak,
			&i.ElapsedSeconds,
			&i.EndReason,
			&i.Answers,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertLeaderboardSnapshot = `-- name: InsertLeaderboardSnapshot :exec
INSERT INTO leaderboard_snapshots (quiz_id, player_id, rank, points, best_percentage, sessions, captured_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertLeaderboardSnapshotParams struct {
	QuizID         pgtype.UUID        `json:"quiz_id"`
	PlayerID       pgtype.UUID        `json:"player_id"`
	Rank           int32              `json:"rank"`
	Points         int32              `json:"points"`
	BestPercentage int32              `json:"best_percentage"`
	Sessions       int32              `json:"sessions"`
	CapturedAt     pgtype.Timestamptz `json:"captured_at"`
}

func (q *Queries) InsertLeaderboardSnapshot(ctx context.Context, arg InsertLeaderboardSnapshotParams) error {
	_, err := q.db.Exec(ctx, insertLeaderboardSnapshot,
		arg.QuizID,
		arg.PlayerID,
		arg.Rank,
		arg.Points,
		arg.BestPercentage,
		arg.Sessions,
		arg.CapturedAt,
	)
	return err
}

const listLatestSnapshot = `-- name: ListLatestSnapshot :many
SELECT id, quiz_id, player_id, rank, points, best_percentage, sessions, captured_at
FROM leaderboard_snapshots
WHERE quiz_id = $1
  AND captured_at = (SELECT MAX(captured_at) FROM leaderboard_snapshots WHERE quiz_id = $1)
ORDER BY rank ASC
LIMIT $2
`

type ListLatestSnapshotParams struct {
	QuizID pgtype.UUID `json:"quiz_id"`
	Limit  int32       `json:"limit"`
}

func (q *Queries) ListLatestSnapshot(ctx context.Context, arg ListLatestSnapshotParams) ([]LeaderboardSnapshot, error) {
	rows, err := q.db.Query(ctx, listLatestSnapshot, arg.QuizID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LeaderboardSnapshot
	for rows.Next() {
		var i LeaderboardSnapshot
		if err := rows.Scan(
			&i.ID,
			&i.QuizID,
			&i.PlayerID,
			&i.Rank,
			&i.Points,
			&i.BestPercentage,
			&i.Sessions,
			&i.CapturedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

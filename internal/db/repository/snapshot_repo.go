package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Lownheur/prjt-web/internal/db/queries"
	"github.com/Lownheur/prjt-web/internal/leaderboard"
)

type snapshotStore interface {
	InsertLeaderboardSnapshot(ctx context.Context, arg queries.InsertLeaderboardSnapshotParams) error
	ListLatestSnapshot(ctx context.Context, arg queries.ListLatestSnapshotParams) ([]queries.LeaderboardSnapshot, error)
}

// SnapshotRepository persists leaderboard snapshots.
type SnapshotRepository struct {
	store snapshotStore
}

var _ leaderboard.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository(store snapshotStore) *SnapshotRepository {
	return &SnapshotRepository{store: store}
}

// SaveSnapshot writes one row per ranked entry, all sharing capturedAt.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, quizID uuid.UUID, entries []leaderboard.Entry, capturedAt time.Time) error {
	for i, e := range entries {
		err := r.store.InsertLeaderboardSnapshot(ctx, queries.InsertLeaderboardSnapshotParams{
			QuizID:         pgUUID(quizID),
			PlayerID:       pgUUID(e.PlayerID),
			Rank:           int32(i + 1),
			Points:         int32(e.Points),
			BestPercentage: int32(e.BestPercentage),
			Sessions:       int32(e.Sessions),
			CapturedAt:     pgTime(capturedAt),
		})
		if err != nil {
			return fmt.Errorf("insert leaderboard snapshot: %w", err)
		}
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of a quiz, best rank first.
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context, quizID uuid.UUID, limit int) ([]leaderboard.Entry, error) {
	rows, err := r.store.ListLatestSnapshot(ctx, queries.ListLatestSnapshotParams{
		QuizID: pgUUID(quizID),
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list leaderboard snapshot: %w", err)
	}

	entries := make([]leaderboard.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, leaderboard.Entry{
			PlayerID:       uuid.UUID(row.PlayerID.Bytes),
			Points:         int(row.Points),
			BestPercentage: int(row.BestPercentage),
			Sessions:       int(row.Sessions),
		})
	}
	return entries, nil
}

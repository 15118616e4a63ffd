package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotStore persists leaderboard snapshots and reads the latest one back.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, quizID uuid.UUID, entries []Entry, capturedAt time.Time) error
	LatestSnapshot(ctx context.Context, quizID uuid.UUID, limit int) ([]Entry, error)
}

// SnapshotWorker periodically persists Redis leaderboards into Postgres.
type SnapshotWorker struct {
	svc      *Service
	store    SnapshotStore
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

func NewSnapshotWorker(svc *Service, store SnapshotStore, interval time.Duration, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SnapshotWorker{
		svc:      svc,
		store:    store,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until context cancellation.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if w.svc == nil || w.store == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	quizzes, err := w.svc.Quizzes(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("list leaderboards failed")
		return
	}
	for _, quizID := range quizzes {
		if err := w.snapshotQuiz(ctx, quizID); err != nil {
			w.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("snapshot failed")
		}
	}
}

func (w *SnapshotWorker) snapshotQuiz(ctx context.Context, quizID uuid.UUID) error {
	entries, err := w.svc.SnapshotTop(ctx, quizID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	now := w.now()
	if err := w.store.SaveSnapshot(ctx, quizID, entries, now); err != nil {
		return err
	}

	w.logger.Info().
		Str("quiz_id", quizID.String()).
		Int("entries", len(entries)).
		Time("captured_at", now).
		Msg("leaderboard snapshot persisted")

	return nil
}

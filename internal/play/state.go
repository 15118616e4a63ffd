package play

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	startLockTTL       = 10 * time.Second
	defaultProgressTTL = 2 * time.Hour
)

// releaseScript deletes a lock only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// StateManager keeps session snapshots in Redis so progress and final reports
// survive the in-memory engine, and guards session starts with a per-player lock.
type StateManager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStateManager creates a state manager backed by Redis.
func NewStateManager(redis *redis.Client, ttl time.Duration, logger zerolog.Logger) *StateManager {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &StateManager{
		redis:  redis,
		ttl:    ttl,
		logger: logger.With().Str("component", "play_state").Logger(),
	}
}

// LockPlayerStart serialises session starts for one player. The returned
// function releases the lock; the lock also expires on its own.
func (s *StateManager) LockPlayerStart(ctx context.Context, playerID uuid.UUID) (func() error, error) {
	key := fmt.Sprintf("play:lock:start:%s", playerID.String())
	lockValue := uuid.New().String()

	acquired, err := s.redis.SetNX(ctx, key, lockValue, startLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrStartInFlight
	}

	unlock := func() error {
		return releaseScript.Run(context.Background(), s.redis, []string{key}, lockValue).Err()
	}
	return unlock, nil
}

// StoreProgress saves the latest snapshot of a session.
func (s *StateManager) StoreProgress(ctx context.Context, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.redis.Set(ctx, progressKey(p.SessionID), data, s.ttl).Err()
}

// GetProgress returns the last stored snapshot, or nil if none exists.
func (s *StateManager) GetProgress(ctx context.Context, sessionID uuid.UUID) (*Progress, error) {
	data, err := s.redis.Get(ctx, progressKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &p, nil
}

// StoreReport keeps a finished session's report for later review.
func (s *StateManager) StoreReport(ctx context.Context, report ScoreReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.redis.Set(ctx, reportKey(report.SessionID), data, s.ttl).Err()
}

// GetReport returns a stored report, or nil if none exists.
func (s *StateManager) GetReport(ctx context.Context, sessionID uuid.UUID) (*ScoreReport, error) {
	data, err := s.redis.Get(ctx, reportKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	var report ScoreReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

func progressKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("play:session:%s:progress", sessionID.String())
}

func reportKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("play:session:%s:report", sessionID.String())
}

package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Lownheur/prjt-web/internal/play"
	ws "github.com/Lownheur/prjt-web/pkg/http/ws"
)

// Entry represents a player's standing on a quiz leaderboard.
type Entry struct {
	PlayerID       uuid.UUID `json:"player_id"`
	Points         int       `json:"points"`
	BestPercentage int       `json:"best_percentage"`
	Sessions       int       `json:"sessions"`
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN             int
	PubSubChannel    string
	EntryTTL         time.Duration
	RedisKeyPrefix   string
	SnapshotTopLimit int
	UpdateTopN       int
}

// Service keeps one sorted set of points per quiz in Redis and emits updates
// over Pub/Sub. It is a play.ResultSink.
type Service struct {
	redis          *redis.Client
	logger         zerolog.Logger
	topN           int
	updateTopN     int
	pubsubChannel  string
	entryTTL       time.Duration
	prefix         string
	snapshotTopLim int
}

// bestScript keeps the highest percentage seen for a player.
var bestScript = redis.NewScript(`
	local current = tonumber(redis.call("hget", KEYS[1], "best_percentage") or "-1")
	if tonumber(ARGV[1]) > current then
		redis.call("hset", KEYS[1], "best_percentage", ARGV[1])
	end
	return redis.call("hincrby", KEYS[1], "sessions", 1)
`)

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	updateTop := opts.UpdateTopN
	if updateTop <= 0 {
		updateTop = 10
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	snapTop := opts.SnapshotTopLimit
	if snapTop <= 0 {
		snapTop = 100
	}

	return &Service{
		redis:          redis,
		logger:         logger.With().Str("component", "leaderboard").Logger(),
		topN:           topN,
		updateTopN:     updateTop,
		pubsubChannel:  channel,
		entryTTL:       opts.EntryTTL,
		prefix:         prefix,
		snapshotTopLim: snapTop,
	}
}

// RecordSession adds a finished session's points to its quiz leaderboard and
// publishes the new top entries.
func (s *Service) RecordSession(ctx context.Context, report play.ScoreReport) error {
	if report.Abandoned {
		return nil
	}

	zKey := s.leaderboardKey(report.QuizID)
	metaKey := s.metaKey(report.QuizID, report.PlayerID)

	pipe := s.redis.TxPipeline()
	pipe.ZIncrBy(ctx, zKey, float64(report.Points), report.PlayerID.String())
	pipe.SAdd(ctx, s.quizzesKey(), report.QuizID.String())
	if s.entryTTL > 0 {
		pipe.Expire(ctx, zKey, s.entryTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard %s: %w", report.QuizID, err)
	}

	if err := bestScript.Run(ctx, s.redis, []string{metaKey}, report.Percentage).Err(); err != nil {
		return fmt.Errorf("update leaderboard meta %s: %w", report.QuizID, err)
	}
	if s.entryTTL > 0 {
		if err := s.redis.Expire(ctx, metaKey, s.entryTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("quiz_id", report.QuizID.String()).Msg("failed to set leaderboard metadata ttl")
		}
	}

	s.publishUpdate(ctx, report.QuizID)
	return nil
}

// Top retrieves the top entries of a quiz leaderboard.
func (s *Service) Top(ctx context.Context, quizID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}
	return s.top(ctx, quizID, limit)
}

// SnapshotTop returns the configured snapshot size for persistence jobs.
func (s *Service) SnapshotTop(ctx context.Context, quizID uuid.UUID) ([]Entry, error) {
	return s.top(ctx, quizID, s.snapshotTopLim)
}

// Quizzes lists quizzes that have a leaderboard.
func (s *Service) Quizzes(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.redis.SMembers(ctx, s.quizzesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list leaderboards: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) top(ctx context.Context, quizID uuid.UUID, limit int) ([]Entry, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(quizID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		member, _ := z.Member.(string)
		playerID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entry, err := s.readMeta(ctx, quizID, playerID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Points = int(z.Score)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) publishUpdate(ctx context.Context, quizID uuid.UUID) {
	entries, err := s.top(ctx, quizID, s.updateTopN)
	if err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("failed to collect leaderboard update")
		return
	}
	if len(entries) == 0 {
		return
	}

	data, err := json.Marshal(ws.LeaderboardUpdatePayload{
		QuizID: quizID.String(),
		Top:    toWSEntries(entries),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
		return
	}
	if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
	}
}

func (s *Service) readMeta(ctx context.Context, quizID, playerID uuid.UUID) (Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(quizID, playerID)).Result()
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{PlayerID: playerID}
	if len(data) == 0 {
		return entry, nil
	}
	entry.BestPercentage = parseInt(data["best_percentage"])
	entry.Sessions = parseInt(data["sessions"])
	return entry, nil
}

func (s *Service) leaderboardKey(quizID uuid.UUID) string {
	return fmt.Sprintf("%s:quiz:%s", s.prefix, quizID.String())
}

func (s *Service) metaKey(quizID, playerID uuid.UUID) string {
	return fmt.Sprintf("%s:quiz:%s:meta:%s", s.prefix, quizID.String(), playerID.String())
}

func (s *Service) quizzesKey() string {
	return fmt.Sprintf("%s:quizzes", s.prefix)
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}

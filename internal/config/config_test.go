package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "quiz")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DATABASE", "quiz")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("JWT_SECRET", "jwt")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "quiz-play", cfg.Name)
	assert.Equal(t, "aggregate", cfg.Play.DefaultMode)
	assert.Equal(t, 600, cfg.Play.DefaultTotalSeconds)
	assert.Equal(t, 30, cfg.Play.DefaultPerQuestionSeconds)
	assert.Equal(t, 5*time.Second, cfg.Play.RecordTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.QuizTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
	assert.Contains(t, cfg.Postgres.DSN(), "host=db port=5432")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PLAY_DEFAULT_MODE", "per_question")
	t.Setenv("PLAY_MAX_PER_QUESTION_SECONDS", "120")
	t.Setenv("LEADERBOARD_SNAPSHOT_INTERVAL", "1m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "per_question", cfg.Play.DefaultMode)
	assert.Equal(t, 120, cfg.Play.MaxPerQuestionSeconds)
	assert.Equal(t, time.Minute, cfg.Leaderboard.SnapshotInterval)
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load(context.Background())
	assert.Error(t, err)
}

func TestLoadPostgresOnly(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "quiz")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DATABASE", "quiz")
	t.Setenv("PG_PORT", "6432")

	pg, err := LoadPostgres()
	require.NoError(t, err)
	assert.Equal(t, 6432, pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)
}

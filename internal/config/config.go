package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-play"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Identity    Identity
	Play        Play
	Scoring     Scoring
	Leaderboard Leaderboard
	Cache       Cache
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the connection string. Pool sizing is applied separately so
// the same string works with database/sql.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds cache, lock and pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Identity configures verification of access tokens issued by the auth provider.
type Identity struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:""`
	Audience  string        `env:"JWT_AUDIENCE" envDefault:""`
	Leeway    time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// Play groups session timing defaults and bounds.
type Play struct {
	DefaultMode               string        `env:"PLAY_DEFAULT_MODE" envDefault:"aggregate"`
	DefaultTotalSeconds       int           `env:"PLAY_DEFAULT_TOTAL_SECONDS" envDefault:"600"`
	DefaultPerQuestionSeconds int           `env:"PLAY_DEFAULT_PER_QUESTION_SECONDS" envDefault:"30"`
	MaxTotalSeconds           int           `env:"PLAY_MAX_TOTAL_SECONDS" envDefault:"7200"`
	MaxPerQuestionSeconds     int           `env:"PLAY_MAX_PER_QUESTION_SECONDS" envDefault:"300"`
	RecordTimeout             time.Duration `env:"PLAY_RECORD_TIMEOUT" envDefault:"5s"`
	ProgressTTL               time.Duration `env:"PLAY_PROGRESS_TTL" envDefault:"2h"`
}

// Scoring holds leaderboard point constants.
type Scoring struct {
	BaseScore          int     `env:"SCORING_BASE" envDefault:"100"`
	MaxTimeBonus       int     `env:"SCORING_MAX_TIME_BONUS" envDefault:"50"`
	StreakBonusPercent float64 `env:"SCORING_STREAK_BONUS_PERCENT" envDefault:"0.05"`
	MaxStreakBonus     float64 `env:"SCORING_MAX_STREAK_BONUS" envDefault:"0.5"`
}

// Leaderboard governs snapshotting and broadcast behavior.
type Leaderboard struct {
	TopN             int           `env:"LEADERBOARD_TOP" envDefault:"50"`
	UpdateTopN       int           `env:"LEADERBOARD_UPDATE_TOP" envDefault:"10"`
	PubSubChannel    string        `env:"LEADERBOARD_CHANNEL" envDefault:"lb:updates"`
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP" envDefault:"50"`
}

// Cache configures the quiz content cache.
type Cache struct {
	QuizTTL time.Duration `env:"QUIZ_CACHE_TTL" envDefault:"10m"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadPostgres parses only the database settings, for tools that need
// nothing else.
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.ParseWithOptions(&pg, env.Options{RequiredIfNoDef: true}); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	return pg, nil
}

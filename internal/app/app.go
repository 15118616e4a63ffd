package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Lownheur/prjt-web/internal/config"
	"github.com/Lownheur/prjt-web/internal/db/queries"
	"github.com/Lownheur/prjt-web/internal/db/repository"
	"github.com/Lownheur/prjt-web/internal/identity"
	"github.com/Lownheur/prjt-web/internal/leaderboard"
	"github.com/Lownheur/prjt-web/internal/logging"
	"github.com/Lownheur/prjt-web/internal/metrics"
	"github.com/Lownheur/prjt-web/internal/play"
	"github.com/Lownheur/prjt-web/internal/play/clock"
	"github.com/Lownheur/prjt-web/internal/play/scoring"
	"github.com/Lownheur/prjt-web/internal/quiz"
	"github.com/Lownheur/prjt-web/internal/server"
	ws "github.com/Lownheur/prjt-web/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	play           *play.Service
	lbBroadcaster  *leaderboard.Broadcaster
	snapshotWorker *leaderboard.SnapshotWorker
	bgCancels      []context.CancelFunc
}

// New bootstraps logger, Postgres, Redis, the play service and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	defaultMode, err := play.ParseMode(cfg.Play.DefaultMode)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("parse default mode: %w", err)
	}

	q := queries.New(pool)
	quizRepo := repository.NewQuizRepository(q)
	resultRepo := repository.NewResultRepository(q)
	snapshotRepo := repository.NewSnapshotRepository(q)

	m := metrics.New(prometheus.DefaultRegisterer)
	verifier := identity.NewVerifier(identity.VerifierConfig{
		Secret:   []byte(cfg.Identity.JWTSecret),
		Issuer:   cfg.Identity.Issuer,
		Audience: cfg.Identity.Audience,
		Leeway:   cfg.Identity.Leeway,
	})

	quizSvc := quiz.NewService(quizRepo, quiz.NewCache(redisClient, cfg.Cache.QuizTTL), logger)
	stateMgr := play.NewStateManager(redisClient, cfg.Play.ProgressTTL, logger)
	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:             cfg.Leaderboard.TopN,
		UpdateTopN:       cfg.Leaderboard.UpdateTopN,
		PubSubChannel:    cfg.Leaderboard.PubSubChannel,
		SnapshotTopLimit: cfg.Leaderboard.SnapshotTopN,
	})

	playSvc := play.NewService(
		quizSvc,
		[]play.NamedSink{
			{Name: "history", Sink: resultRepo},
			{Name: "leaderboard", Sink: leaderboardSvc},
		},
		stateMgr,
		m,
		play.ServiceOptions{
			Scheduler: clock.SystemScheduler,
			Scoring: scoring.ScoringConfig{
				BaseScore:          cfg.Scoring.BaseScore,
				MaxTimeBonus:       cfg.Scoring.MaxTimeBonus,
				StreakBonusPercent: cfg.Scoring.StreakBonusPercent,
				MaxStreakBonus:     cfg.Scoring.MaxStreakBonus,
			},
			DefaultConfig: play.TimeConfig{
				Mode:               defaultMode,
				TotalSeconds:       cfg.Play.DefaultTotalSeconds,
				PerQuestionSeconds: cfg.Play.DefaultPerQuestionSeconds,
			},
			MaxTotalSeconds:       cfg.Play.MaxTotalSeconds,
			MaxPerQuestionSeconds: cfg.Play.MaxPerQuestionSeconds,
			RecordTimeout:         cfg.Play.RecordTimeout,
		},
		logger,
	)

	wsHub := ws.NewHub(logger)
	playWSHandler := play.NewHandler(playSvc, wsHub, verifier, m, logger)
	playHTTPHandlers := play.NewHTTPHandlers(playSvc, resultRepo, logger)
	lbHTTPHandler := leaderboard.NewHTTPHandler(leaderboardSvc, snapshotRepo, logger)
	lbBroadcaster := leaderboard.NewBroadcaster(redisClient, wsHub, cfg.Leaderboard.PubSubChannel, logger)

	var snapshotWorker *leaderboard.SnapshotWorker
	if interval := cfg.Leaderboard.SnapshotInterval; interval > 0 {
		snapshotWorker = leaderboard.NewSnapshotWorker(leaderboardSvc, snapshotRepo, interval, logger)
	}

	authenticated := func(next http.Handler) http.Handler {
		return identity.Middleware(verifier, logger)(identity.RequireAuth(next))
	}

	server.AllowOrigins(cfg.CORS.AllowedOrigins)
	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient,
		func(mux *http.ServeMux) { playHTTPHandlers.Register(mux, authenticated) },
		func(mux *http.ServeMux) {
			mux.HandleFunc("GET /v1/quizzes/{id}/leaderboard", lbHTTPHandler.HandleGet)
			mux.HandleFunc("GET /ws/sessions", playWSHandler.HandleWebSocket)
		},
	)

	return &Application{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		http:           apiServer,
		play:           playSvc,
		lbBroadcaster:  lbBroadcaster,
		snapshotWorker: snapshotWorker,
		bgCancels:      make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	// Live sessions end before the stores they report to go away.
	if err := a.play.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("play shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.lbBroadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.lbBroadcaster.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard broadcaster stopped")
			}
		}()
	}

	if a.snapshotWorker != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.snapshotWorker.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard snapshot worker stopped")
			}
		}()
	}
}

package play

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lownheur/prjt-web/internal/metrics"
	"github.com/Lownheur/prjt-web/internal/play/clock"
	"github.com/Lownheur/prjt-web/internal/play/scoring"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

// QuestionSource loads the questions a player may play for a quiz.
type QuestionSource interface {
	LoadQuestions(ctx context.Context, quizID, playerID uuid.UUID) ([]quiz.Question, error)
}

// ResultSink receives the report of every session that was not abandoned.
type ResultSink interface {
	RecordSession(ctx context.Context, report ScoreReport) error
}

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink ResultSink
}

// ServiceOptions configures the play service.
type ServiceOptions struct {
	Scheduler             clock.Scheduler
	Scoring               scoring.ScoringConfig
	DefaultConfig         TimeConfig
	MaxTotalSeconds       int
	MaxPerQuestionSeconds int
	RecordTimeout         time.Duration
}

// StartRequest asks for a new session.
type StartRequest struct {
	PlayerID uuid.UUID
	QuizID   uuid.UUID
	Config   TimeConfig
}

// Service runs sessions for players: it loads questions, owns the engines,
// pushes their events to notifiers and hands final reports to result sinks.
type Service struct {
	questions QuestionSource
	sinks     []NamedSink
	state     *StateManager
	registry  *Registry
	metrics   *metrics.Metrics
	scorer    *scoring.Engine
	opts      ServiceOptions
	logger    zerolog.Logger

	mu        sync.RWMutex
	notifiers []Notifier

	pending sync.WaitGroup
}

// NewService creates a play service. state and m may be nil.
func NewService(
	questions QuestionSource,
	sinks []NamedSink,
	state *StateManager,
	m *metrics.Metrics,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 5 * time.Second
	}
	if opts.DefaultConfig.Mode == "" {
		opts.DefaultConfig = TimeConfig{Mode: ModeAggregate, TotalSeconds: 600, PerQuestionSeconds: 30}
	}
	if m == nil {
		m = metrics.New(nil)
	}

	return &Service{
		questions: questions,
		sinks:     sinks,
		state:     state,
		registry:  NewRegistry(),
		metrics:   m,
		scorer:    scoring.NewEngine(opts.Scoring),
		opts:      opts,
		logger:    logger.With().Str("component", "play").Logger(),
	}
}

// Subscribe adds a notifier for session events.
func (s *Service) Subscribe(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Start loads the quiz and begins a new session. A player's previous live
// session is abandoned.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	cfg, err := s.resolveConfig(req.Config)
	if err != nil {
		return nil, err
	}

	if s.state != nil {
		unlock, err := s.state.LockPlayerStart(ctx, req.PlayerID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(); err != nil {
				s.logger.Warn().Err(err).Str("player_id", req.PlayerID.String()).Msg("release start lock")
			}
		}()
	}

	questions, err := s.questions.LoadQuestions(ctx, req.QuizID, req.PlayerID)
	s.metrics.QuizLoads.WithLabelValues(loadOutcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	session := &Session{
		ID:        uuid.New(),
		QuizID:    req.QuizID,
		PlayerID:  req.PlayerID,
		Config:    cfg,
		Total:     len(questions),
		CreatedAt: time.Now().UTC(),
	}
	session.engine = NewEngine(&sessionListener{svc: s, session: session}, Options{
		SessionID: session.ID,
		QuizID:    req.QuizID,
		PlayerID:  req.PlayerID,
		Scheduler: s.opts.Scheduler,
		Scoring:   s.scorer,
		Logger:    s.logger,
	})

	// Add swaps the player's live session atomically; whatever it displaced
	// is abandoned, even a racing start that has not begun yet.
	s.metrics.ActiveSessions.Inc()
	if prev := s.registry.Add(session); prev != nil {
		s.logger.Info().
			Str("player_id", req.PlayerID.String()).
			Str("session_id", prev.ID.String()).
			Msg("abandoning previous session")
		prev.engine.Abandon()
	}
	if err := session.engine.Begin(questions, cfg); err != nil {
		if errors.Is(err, ErrAlreadyStarted) {
			// superseded by a later start before it began; finish already ran
			return nil, ErrStartInFlight
		}
		s.registry.Remove(session.ID)
		s.metrics.ActiveSessions.Dec()
		return nil, err
	}

	s.metrics.SessionsStarted.WithLabelValues(string(cfg.Mode)).Inc()
	s.logger.Info().
		Str("session_id", session.ID.String()).
		Str("quiz_id", req.QuizID.String()).
		Str("player_id", req.PlayerID.String()).
		Str("mode", string(cfg.Mode)).
		Int("questions", len(questions)).
		Msg("session started")

	return session, nil
}

// Stage records the player's in-progress answer.
func (s *Service) Stage(_ context.Context, sessionID, playerID uuid.UUID, answer string) error {
	session, err := s.lookup(sessionID, playerID)
	if err != nil {
		return err
	}
	return session.engine.StageAnswer(answer)
}

// Submit answers questionID; an empty questionID answers the current question.
func (s *Service) Submit(_ context.Context, sessionID, playerID uuid.UUID, questionID, answer string) error {
	session, err := s.lookup(sessionID, playerID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) && s.finishedFor(sessionID, playerID) {
			return ErrSessionFinished
		}
		return err
	}
	return session.engine.SubmitAnswerFor(questionID, answer)
}

// Abandon ends a session without recording a result.
func (s *Service) Abandon(_ context.Context, sessionID, playerID uuid.UUID) error {
	session, err := s.lookup(sessionID, playerID)
	if err != nil {
		return err
	}
	session.engine.Abandon()
	return nil
}

// Progress returns the live snapshot of a session, falling back to the last
// stored snapshot once it has left this instance.
func (s *Service) Progress(ctx context.Context, sessionID, playerID uuid.UUID) (Progress, error) {
	if session, err := s.lookup(sessionID, playerID); err == nil {
		return session.engine.Progress(), nil
	}
	if s.state == nil {
		return Progress{}, ErrSessionNotFound
	}

	p, err := s.state.GetProgress(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	if p == nil || p.PlayerID != playerID {
		return Progress{}, ErrSessionNotFound
	}
	return *p, nil
}

// Report returns a finished session's report.
func (s *Service) Report(ctx context.Context, sessionID, playerID uuid.UUID) (ScoreReport, error) {
	if session, err := s.lookup(sessionID, playerID); err == nil {
		if report, ok := session.engine.Report(); ok {
			return report, nil
		}
		return ScoreReport{}, ErrNotInProgress
	}
	if s.state == nil {
		return ScoreReport{}, ErrSessionNotFound
	}

	report, err := s.state.GetReport(ctx, sessionID)
	if err != nil {
		return ScoreReport{}, err
	}
	if report == nil || report.PlayerID != playerID {
		return ScoreReport{}, ErrSessionNotFound
	}
	return *report, nil
}

// ActiveSession returns the player's live session on this instance.
func (s *Service) ActiveSession(playerID uuid.UUID) (*Session, bool) {
	return s.registry.ForPlayer(playerID)
}

// Shutdown abandons live sessions and waits for pending result writes.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, session := range s.registry.All() {
		session.engine.Abandon()
	}

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until background result writes have completed.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) lookup(sessionID, playerID uuid.UUID) (*Session, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok || session.PlayerID != playerID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) finishedFor(sessionID, playerID uuid.UUID) bool {
	if s.state == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	report, err := s.state.GetReport(ctx, sessionID)
	return err == nil && report != nil && report.PlayerID == playerID
}

func (s *Service) resolveConfig(cfg TimeConfig) (TimeConfig, error) {
	def := s.opts.DefaultConfig
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return TimeConfig{}, err
	}
	cfg.Mode = mode

	// zero means "not provided"; negative values still fail validation
	switch cfg.Mode {
	case ModeAggregate:
		if cfg.TotalSeconds == 0 {
			cfg.TotalSeconds = def.TotalSeconds
		}
		cfg.PerQuestionSeconds = 0
	case ModePerQuestion:
		if cfg.PerQuestionSeconds == 0 {
			cfg.PerQuestionSeconds = def.PerQuestionSeconds
		}
		cfg.TotalSeconds = 0
	}
	if err := cfg.Validate(); err != nil {
		return TimeConfig{}, err
	}

	if s.opts.MaxTotalSeconds > 0 && cfg.TotalSeconds > s.opts.MaxTotalSeconds {
		return TimeConfig{}, fmt.Errorf("%w: total seconds above %d", ErrInvalidConfig, s.opts.MaxTotalSeconds)
	}
	if s.opts.MaxPerQuestionSeconds > 0 && cfg.PerQuestionSeconds > s.opts.MaxPerQuestionSeconds {
		return TimeConfig{}, fmt.Errorf("%w: per-question seconds above %d", ErrInvalidConfig, s.opts.MaxPerQuestionSeconds)
	}
	return cfg, nil
}

func (s *Service) notify(ev Event) {
	s.mu.RLock()
	notifiers := s.notifiers
	s.mu.RUnlock()

	for _, n := range notifiers {
		n.Notify(ev)
	}
}

func (s *Service) saveProgress(session *Session) {
	if s.state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.state.StoreProgress(ctx, session.engine.Progress()); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID.String()).Msg("store progress")
	}
}

// finish runs once per session, from the engine's OnFinished callback.
func (s *Service) finish(session *Session, report ScoreReport) {
	s.registry.Remove(session.ID)
	s.metrics.ActiveSessions.Dec()
	s.metrics.SessionsFinished.WithLabelValues(string(report.Mode), string(report.EndReason)).Inc()

	s.notify(Event{
		Kind:      EventFinished,
		SessionID: session.ID,
		QuizID:    session.QuizID,
		PlayerID:  session.PlayerID,
		Total:     report.TotalQuestions,
		Report:    &report,
	})

	if s.state != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.state.StoreProgress(ctx, session.engine.Progress()); err != nil {
			s.logger.Warn().Err(err).Str("session_id", session.ID.String()).Msg("store final progress")
		}
		if err := s.state.StoreReport(ctx, report); err != nil {
			s.logger.Warn().Err(err).Str("session_id", session.ID.String()).Msg("store report")
		}
		cancel()
	}

	if report.Abandoned {
		return
	}

	for _, item := range report.Breakdown {
		if item.Answer == nil {
			continue
		}
		s.metrics.Answers.WithLabelValues(string(item.Answer.Trigger), strconv.FormatBool(item.Answer.IsCorrect)).Inc()
	}
	s.metrics.ScorePercentage.Observe(float64(report.Percentage))

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.record(report)
	}()
}

func (s *Service) record(report ScoreReport) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RecordTimeout)
		err := sink.Sink.RecordSession(ctx, report)
		cancel()
		if err != nil {
			s.metrics.SinkFailures.WithLabelValues(sink.Name).Inc()
			s.logger.Warn().
				Err(err).
				Str("sink", sink.Name).
				Str("session_id", report.SessionID.String()).
				Msg("record session result")
		}
	}
}

func loadOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, quiz.ErrNotFound):
		return "not_found"
	case errors.Is(err, quiz.ErrAccessDenied):
		return "denied"
	case errors.Is(err, quiz.ErrNoQuestions):
		return "empty"
	default:
		return "error"
	}
}

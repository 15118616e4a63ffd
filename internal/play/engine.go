package play

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lownheur/prjt-web/internal/play/clock"
	"github.com/Lownheur/prjt-web/internal/play/scoring"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

// Options configures an Engine. Zero values are usable: a random session id,
// the system scheduler and the default scoring.
type Options struct {
	SessionID uuid.UUID
	QuizID    uuid.UUID
	PlayerID  uuid.UUID
	Scheduler clock.Scheduler
	Scoring   *scoring.Engine
	Logger    zerolog.Logger
}

type notification func(Listener)

// Engine runs one timed quiz session. Player input and clock events are
// serialised by a single mutex; listener callbacks are queued while it is
// held and delivered in order after it is released.
type Engine struct {
	mu sync.Mutex

	sessionID uuid.UUID
	quizID    uuid.UUID
	playerID  uuid.UUID
	listener  Listener
	clock     *clock.Clock
	scorer    *scoring.Engine
	logger    zerolog.Logger

	phase     Phase
	cfg       TimeConfig
	questions []quiz.Question
	index     int
	answers   map[string]AnswerRecord
	order     []string
	staged    string
	startedAt time.Time
	report    *ScoreReport

	queue       []notification
	dispatching bool
}

// NewEngine creates an engine in the NotStarted phase.
func NewEngine(listener Listener, opts Options) *Engine {
	if listener == nil {
		listener = ListenerFuncs{}
	}
	if opts.SessionID == uuid.Nil {
		opts.SessionID = uuid.New()
	}
	scorer := opts.Scoring
	if scorer == nil {
		scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}

	e := &Engine{
		sessionID: opts.SessionID,
		quizID:    opts.QuizID,
		playerID:  opts.PlayerID,
		listener:  listener,
		scorer:    scorer,
		logger: opts.Logger.With().
			Str("component", "play_engine").
			Str("session_id", opts.SessionID.String()).
			Logger(),
		phase:   PhaseNotStarted,
		answers: make(map[string]AnswerRecord),
	}
	e.clock = clock.New(opts.Scheduler, clockSink{e: e})
	return e
}

// ID returns the session id.
func (e *Engine) ID() uuid.UUID { return e.sessionID }

// QuizID returns the quiz being played.
func (e *Engine) QuizID() uuid.UUID { return e.quizID }

// PlayerID returns the player who owns the session.
func (e *Engine) PlayerID() uuid.UUID { return e.playerID }

// Begin snapshots questions, starts the countdown and positions the session
// at the first question.
func (e *Engine) Begin(questions []quiz.Question, cfg TimeConfig) error {
	e.mu.Lock()
	pending, err := e.beginLocked(questions, cfg)
	e.unlockAndDispatch(pending)
	return err
}

func (e *Engine) beginLocked(questions []quiz.Question, cfg TimeConfig) ([]notification, error) {
	if e.phase != PhaseNotStarted {
		return nil, ErrAlreadyStarted
	}
	if len(questions) == 0 {
		return nil, ErrEmptyQuiz
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	snapshot := make([]quiz.Question, len(questions))
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
		snapshot[i] = q.Clone()
	}

	if err := e.clock.Start(cfg.initialSeconds()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e.cfg = cfg
	e.questions = snapshot
	e.index = 0
	e.phase = PhaseInProgress
	e.startedAt = e.clock.Now()

	e.logger.Debug().
		Str("mode", string(cfg.Mode)).
		Int("questions", len(snapshot)).
		Int("seconds", cfg.initialSeconds()).
		Msg("session started")

	return []notification{e.questionChangedLocked()}, nil
}

// StageAnswer keeps the player's current input. A deadline records the
// staged answer for the question in progress.
func (e *Engine) StageAnswer(answer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.playableLocked(); err != nil {
		return err
	}
	e.staged = answer
	return nil
}

// SubmitAnswer answers the current question and advances.
func (e *Engine) SubmitAnswer(answer string) error {
	return e.SubmitAnswerFor("", answer)
}

// SubmitAnswerFor answers questionID, which must be the current question.
// An empty questionID means the current question.
func (e *Engine) SubmitAnswerFor(questionID, answer string) error {
	e.mu.Lock()
	pending, err := e.submitLocked(questionID, answer)
	e.unlockAndDispatch(pending)
	return err
}

func (e *Engine) submitLocked(questionID, answer string) ([]notification, error) {
	if err := e.playableLocked(); err != nil {
		return nil, err
	}

	current := e.questions[e.index]
	if questionID != "" && questionID != current.ID {
		if _, ok := e.answers[questionID]; ok {
			return nil, ErrAlreadyAnswered
		}
		return nil, ErrQuestionMismatch
	}
	if _, ok := e.answers[current.ID]; ok {
		return nil, ErrAlreadyAnswered
	}

	e.recordLocked(answer, TriggerSubmitted)
	return e.advanceLocked(), nil
}

// Abandon ends the session without a meaningful result. It is a no-op once
// the session has finished.
func (e *Engine) Abandon() {
	e.mu.Lock()
	var pending []notification
	if e.phase != PhaseFinished {
		pending = e.finalizeLocked(EndAbandoned)
	}
	e.unlockAndDispatch(pending)
}

// CurrentQuestion returns the question awaiting an answer.
func (e *Engine) CurrentQuestion() (quiz.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseInProgress {
		return quiz.Question{}, false
	}
	return e.questions[e.index].Clone(), true
}

// CurrentIndex returns the zero-based position of the current question.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// RemainingSeconds returns the seconds left on the countdown.
func (e *Engine) RemainingSeconds() int {
	return e.clock.Remaining()
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Config() TimeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Answers returns the records created so far in resolution order.
func (e *Engine) Answers() []AnswerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]AnswerRecord, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.answers[id].clone())
	}
	return out
}

// Report returns the score report once the session has finished.
func (e *Engine) Report() (ScoreReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.report == nil {
		return ScoreReport{}, false
	}
	return e.report.clone(), true
}

// Progress returns a snapshot safe to show the player.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := Progress{
		SessionID: e.sessionID,
		QuizID:    e.quizID,
		PlayerID:  e.playerID,
		Phase:     e.phase,
		Config:    e.cfg,
		Index:     e.index,
		Total:     len(e.questions),
		Remaining: e.clock.Remaining(),
		Answered:  len(e.answers),
		Staged:    e.staged,
		UpdatedAt: e.clock.Now(),
	}
	if e.phase == PhaseInProgress {
		view := NewQuestionView(e.questions[e.index], e.index, len(e.questions))
		p.Question = &view
	}
	return p
}

func (e *Engine) playableLocked() error {
	switch e.phase {
	case PhaseNotStarted:
		return ErrNotInProgress
	case PhaseFinished:
		return ErrSessionFinished
	}
	return nil
}

func (e *Engine) recordLocked(answer string, trigger Trigger) {
	q := e.questions[e.index]
	rec := AnswerRecord{
		QuestionID:  q.ID,
		GivenAnswer: answer,
		IsCorrect:   scoring.Grade(answer, q.CorrectAnswer),
		Trigger:     trigger,
		ResolvedAt:  e.clock.Now(),
	}
	if e.cfg.Mode == ModePerQuestion {
		spent := e.cfg.PerQuestionSeconds - e.clock.Remaining()
		if spent < 0 {
			spent = 0
		}
		rec.TimeSpentSeconds = &spent
	}

	e.answers[q.ID] = rec
	e.order = append(e.order, q.ID)
	e.staged = ""

	e.logger.Debug().
		Str("question_id", q.ID).
		Str("trigger", string(trigger)).
		Bool("correct", rec.IsCorrect).
		Msg("question resolved")
}

func (e *Engine) advanceLocked() []notification {
	if e.index >= len(e.questions)-1 {
		return e.finalizeLocked(EndCompleted)
	}

	e.index++
	if e.cfg.Mode == ModePerQuestion {
		if err := e.clock.Reset(e.cfg.PerQuestionSeconds); err != nil {
			// Validate already rejected non-positive seconds
			e.logger.Error().Err(err).Msg("reset countdown")
		}
	}
	return []notification{e.questionChangedLocked()}
}

func (e *Engine) finalizeLocked(reason EndReason) []notification {
	e.clock.Stop()
	e.phase = PhaseFinished
	e.staged = ""

	report := e.buildReportLocked(reason, e.clock.Now())
	e.report = &report

	e.logger.Info().
		Str("end_reason", string(reason)).
		Int("answered", report.AnsweredCount).
		Int("correct", report.CorrectCount).
		Int("percentage", report.Percentage).
		Msg("session finished")

	out := report.clone()
	return []notification{func(l Listener) { l.OnFinished(out) }}
}

func (e *Engine) questionChangedLocked() notification {
	q := e.questions[e.index].Clone()
	idx := e.index
	return func(l Listener) { l.OnQuestionChanged(q, idx) }
}

func (e *Engine) onClockTick(ev clock.Event) {
	e.mu.Lock()
	var pending []notification
	if e.liveEventLocked(ev) {
		remaining, idx := ev.Remaining, e.index
		pending = []notification{func(l Listener) {
			if ql, ok := l.(QuestionTickListener); ok {
				ql.OnQuestionTick(idx, remaining)
				return
			}
			l.OnTick(remaining)
		}}
	}
	e.unlockAndDispatch(pending)
}

func (e *Engine) onClockDeadline(ev clock.Event) {
	e.mu.Lock()
	pending := e.deadlineLocked(ev)
	e.unlockAndDispatch(pending)
}

func (e *Engine) deadlineLocked(ev clock.Event) []notification {
	if !e.liveEventLocked(ev) {
		return nil
	}
	if _, ok := e.answers[e.questions[e.index].ID]; ok {
		return nil
	}

	e.logger.Info().
		Str("mode", string(e.cfg.Mode)).
		Int("index", e.index).
		Msg("deadline reached")

	e.recordLocked(e.staged, TriggerDeadline)
	if e.cfg.Mode == ModeAggregate {
		return e.finalizeLocked(EndTimeExpired)
	}
	return e.advanceLocked()
}

// liveEventLocked filters clock events from an earlier countdown cycle or
// delivered after the session finished.
func (e *Engine) liveEventLocked(ev clock.Event) bool {
	if e.phase != PhaseInProgress {
		return false
	}
	if ev.Cycle != e.clock.Cycle() {
		e.logger.Debug().Uint64("cycle", ev.Cycle).Msg("ignoring stale clock event")
		return false
	}
	return true
}

// unlockAndDispatch releases e.mu and delivers pending notifications. Only
// one goroutine delivers at a time; notifications raised by a listener are
// appended to the queue and delivered after the current batch.
func (e *Engine) unlockAndDispatch(pending []notification) {
	e.queue = append(e.queue, pending...)
	if e.dispatching || len(e.queue) == 0 {
		e.mu.Unlock()
		return
	}

	e.dispatching = true
	for len(e.queue) > 0 {
		batch := e.queue
		e.queue = nil
		e.mu.Unlock()
		for _, n := range batch {
			n(e.listener)
		}
		e.mu.Lock()
	}
	e.dispatching = false
	e.mu.Unlock()
}

type clockSink struct {
	e *Engine
}

func (s clockSink) OnTick(ev clock.Event)     { s.e.onClockTick(ev) }
func (s clockSink) OnDeadline(ev clock.Event) { s.e.onClockDeadline(ev) }

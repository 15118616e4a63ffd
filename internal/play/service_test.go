package play

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lownheur/prjt-web/internal/metrics"
	"github.com/Lownheur/prjt-web/internal/play/clock"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) LoadQuestions(ctx context.Context, quizID, playerID uuid.UUID) ([]quiz.Question, error) {
	args := m.Called(ctx, quizID, playerID)
	questions, _ := args.Get(0).([]quiz.Question)
	return questions, args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) RecordSession(ctx context.Context, report ScoreReport) error {
	return m.Called(ctx, report).Error(0)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *eventRecorder) Last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

type serviceFixture struct {
	svc     *Service
	source  *mockSource
	sink    *mockSink
	sched   *clock.ManualScheduler
	state   *StateManager
	metrics *metrics.Metrics
	events  *eventRecorder
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	f := &serviceFixture{
		source:  new(mockSource),
		sink:    new(mockSink),
		sched:   clock.NewManualScheduler(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		state:   NewStateManager(client, time.Hour, logger),
		metrics: metrics.New(nil),
		events:  &eventRecorder{},
	}
	f.svc = NewService(f.source, []NamedSink{{Name: "history", Sink: f.sink}}, f.state, f.metrics, ServiceOptions{
		Scheduler:             f.sched,
		DefaultConfig:         TimeConfig{Mode: ModeAggregate, TotalSeconds: 600, PerQuestionSeconds: 30},
		MaxTotalSeconds:       7200,
		MaxPerQuestionSeconds: 300,
	}, logger)
	f.svc.Subscribe(f.events)
	return f
}

func TestServicePlaysSessionToCompletion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID, playerID := uuid.New(), uuid.New()

	f.source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(capitals(), nil)
	f.sink.On("RecordSession", mock.Anything, mock.MatchedBy(func(r ScoreReport) bool {
		return r.Percentage == 100 && r.PlayerID == playerID && r.QuizID == quizID
	})).Return(nil).Once()

	session, err := f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: quizID})
	require.NoError(t, err)
	assert.Equal(t, ModeAggregate, session.Config.Mode)
	assert.Equal(t, 600, session.Config.TotalSeconds)

	started, ok := f.events.Last(EventStarted)
	require.True(t, ok)
	require.NotNil(t, started.Question)
	assert.Equal(t, "fr", started.Question.ID)
	assert.Equal(t, 3, started.Total)

	require.NoError(t, f.svc.Stage(ctx, session.ID, playerID, "Par"))
	require.NoError(t, f.svc.Submit(ctx, session.ID, playerID, "fr", "Paris"))
	require.NoError(t, f.svc.Submit(ctx, session.ID, playerID, "", "Rome"))
	require.NoError(t, f.svc.Submit(ctx, session.ID, playerID, "es", "madrid"))
	f.svc.Wait()

	f.sink.AssertExpectations(t)
	assert.Equal(t, []EventKind{
		EventStarted, EventQuestionChanged, EventQuestionChanged, EventQuestionChanged, EventFinished,
	}, f.events.Kinds())

	_, live := f.svc.ActiveSession(playerID)
	assert.False(t, live)

	report, err := f.svc.Report(ctx, session.ID, playerID)
	require.NoError(t, err)
	assert.Equal(t, 100, report.Percentage)
	assert.Equal(t, EndCompleted, report.EndReason)

	progress, err := f.svc.Progress(ctx, session.ID, playerID)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, progress.Phase)

	assert.ErrorIs(t, f.svc.Submit(ctx, session.ID, playerID, "", "again"), ErrSessionFinished)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsFinished.WithLabelValues("aggregate", "completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

func TestServiceSkipsSinksForAbandonedSessions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID, playerID := uuid.New(), uuid.New()
	f.source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(capitals(), nil)

	session, err := f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: quizID})
	require.NoError(t, err)
	require.NoError(t, f.svc.Abandon(ctx, session.ID, playerID))
	f.svc.Wait()

	f.sink.AssertNotCalled(t, "RecordSession", mock.Anything, mock.Anything)
	finished, ok := f.events.Last(EventFinished)
	require.True(t, ok)
	assert.True(t, finished.Report.Abandoned)
}

func TestServiceNewStartAbandonsPreviousSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID, playerID := uuid.New(), uuid.New()
	f.source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(capitals(), nil)

	first, err := f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: quizID})
	require.NoError(t, err)
	second, err := f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: quizID})
	require.NoError(t, err)

	assert.Equal(t, PhaseFinished, first.Engine().Phase())
	report, ok := first.Engine().Report()
	require.True(t, ok)
	assert.True(t, report.Abandoned)

	active, ok := f.svc.ActiveSession(playerID)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

// startOnFinish starts another session for the player from inside the
// finished notification of a displaced session, which lands between the
// outer start registering its session and beginning it.
type startOnFinish struct {
	svc     *Service
	watch   uuid.UUID
	req     StartRequest
	started *Session
	err     error
}

func (n *startOnFinish) Notify(ev Event) {
	if ev.Kind != EventFinished || ev.SessionID != n.watch || n.started != nil {
		return
	}
	n.started, n.err = n.svc.Start(context.Background(), n.req)
}

func TestServiceInterleavedStartsLeaveOneLiveSession(t *testing.T) {
	source := new(mockSource)
	sched := clock.NewManualScheduler(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	m := metrics.New(nil)
	svc := NewService(source, nil, nil, m, ServiceOptions{
		Scheduler:     sched,
		DefaultConfig: TimeConfig{Mode: ModeAggregate, TotalSeconds: 600, PerQuestionSeconds: 30},
	}, zerolog.New(io.Discard))

	ctx := context.Background()
	quizID, playerID := uuid.New(), uuid.New()
	source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(capitals(), nil)
	req := StartRequest{PlayerID: playerID, QuizID: quizID}

	first, err := svc.Start(ctx, req)
	require.NoError(t, err)

	racer := &startOnFinish{svc: svc, watch: first.ID, req: req}
	svc.Subscribe(racer)

	_, err = svc.Start(ctx, req)
	assert.ErrorIs(t, err, ErrStartInFlight)
	require.NoError(t, racer.err)
	require.NotNil(t, racer.started)

	assert.Equal(t, PhaseFinished, first.Engine().Phase())
	assert.Equal(t, PhaseInProgress, racer.started.Engine().Phase())
	active, ok := svc.ActiveSession(playerID)
	require.True(t, ok)
	assert.Equal(t, racer.started.ID, active.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	sched.Advance(600 * time.Second)
	assert.Equal(t, 0, sched.Pending(), "no orphaned countdown keeps ticking")
}

func TestServiceSessionsArePrivate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID, playerID, stranger := uuid.New(), uuid.New(), uuid.New()
	f.source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(capitals(), nil)

	session, err := f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: quizID})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Submit(ctx, session.ID, stranger, "", "Paris"), ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Stage(ctx, session.ID, stranger, "Paris"), ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Abandon(ctx, session.ID, stranger), ErrSessionNotFound)
	_, err = f.svc.Progress(ctx, session.ID, stranger)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Progress(ctx, uuid.New(), playerID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Equal(t, PhaseInProgress, session.Engine().Phase())
}

func TestServiceRejectsConcurrentStart(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	playerID := uuid.New()

	unlock, err := f.state.LockPlayerStart(ctx, playerID)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: uuid.New()})
	assert.ErrorIs(t, err, ErrStartInFlight)
	f.source.AssertNotCalled(t, "LoadQuestions", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, unlock())
}

func TestServicePropagatesQuizErrors(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID, playerID := uuid.New(), uuid.New()
	f.source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(nil, quiz.ErrAccessDenied)

	_, err := f.svc.Start(ctx, StartRequest{PlayerID: playerID, QuizID: quizID})
	assert.ErrorIs(t, err, quiz.ErrAccessDenied)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QuizLoads.WithLabelValues("denied")))

	// the start lock was released
	f.source.On("LoadQuestions", mock.Anything, quizID, mock.Anything).Return(capitals(), nil)
	_, err = f.svc.Start(ctx, StartRequest{PlayerID: uuid.New(), QuizID: quizID})
	assert.NoError(t, err)
}

func TestServiceResolvesTimeConfig(t *testing.T) {
	f := newServiceFixture(t)

	cfg, err := f.svc.resolveConfig(TimeConfig{})
	require.NoError(t, err)
	assert.Equal(t, TimeConfig{Mode: ModeAggregate, TotalSeconds: 600}, cfg)

	cfg, err = f.svc.resolveConfig(TimeConfig{Mode: ModePerQuestion})
	require.NoError(t, err)
	assert.Equal(t, TimeConfig{Mode: ModePerQuestion, PerQuestionSeconds: 30}, cfg)

	cfg, err = f.svc.resolveConfig(TimeConfig{Mode: "total", TotalSeconds: 120, PerQuestionSeconds: 5})
	require.NoError(t, err)
	assert.Equal(t, TimeConfig{Mode: ModeAggregate, TotalSeconds: 120}, cfg)

	_, err = f.svc.resolveConfig(TimeConfig{Mode: ModeAggregate, TotalSeconds: -5})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = f.svc.resolveConfig(TimeConfig{Mode: ModePerQuestion, PerQuestionSeconds: 301})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = f.svc.resolveConfig(TimeConfig{Mode: "blitz"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestServiceRecordsDeadlineDrivenSessions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID, playerID := uuid.New(), uuid.New()
	f.source.On("LoadQuestions", mock.Anything, quizID, playerID).Return(capitals()[:1], nil)
	f.sink.On("RecordSession", mock.Anything, mock.MatchedBy(func(r ScoreReport) bool {
		return r.AnsweredCount == 1 && r.Breakdown[0].Answer.Trigger == TriggerDeadline
	})).Return(errors.New("db down")).Once()

	session, err := f.svc.Start(ctx, StartRequest{
		PlayerID: playerID,
		QuizID:   quizID,
		Config:   TimeConfig{Mode: ModePerQuestion, PerQuestionSeconds: 5},
	})
	require.NoError(t, err)

	f.sched.Advance(5 * time.Second)
	f.svc.Wait()

	f.sink.AssertExpectations(t)
	assert.Equal(t, PhaseFinished, session.Engine().Phase())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SinkFailures.WithLabelValues("history")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Answers.WithLabelValues("deadline", "false")))

	ticks := 0
	for _, kind := range f.events.Kinds() {
		if kind == EventTick {
			ticks++
		}
	}
	assert.Equal(t, 4, ticks)
}

func TestServiceShutdownAbandonsLiveSessions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	quizID := uuid.New()
	f.source.On("LoadQuestions", mock.Anything, quizID, mock.Anything).Return(capitals(), nil)

	a, err := f.svc.Start(ctx, StartRequest{PlayerID: uuid.New(), QuizID: quizID})
	require.NoError(t, err)
	b, err := f.svc.Start(ctx, StartRequest{PlayerID: uuid.New(), QuizID: quizID})
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	assert.Equal(t, PhaseFinished, a.Engine().Phase())
	assert.Equal(t, PhaseFinished, b.Engine().Phase())
	f.sink.AssertNotCalled(t, "RecordSession", mock.Anything, mock.Anything)
}

func TestStateManagerRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	missing, err := f.state.GetProgress(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	p := Progress{SessionID: uuid.New(), PlayerID: uuid.New(), Phase: PhaseInProgress, Index: 2, Total: 5}
	require.NoError(t, f.state.StoreProgress(ctx, p))
	got, err := f.state.GetProgress(ctx, p.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Index)

	playerID := uuid.New()
	unlock, err := f.state.LockPlayerStart(ctx, playerID)
	require.NoError(t, err)
	_, err = f.state.LockPlayerStart(ctx, playerID)
	assert.ErrorIs(t, err, ErrStartInFlight)
	require.NoError(t, unlock())
	unlock, err = f.state.LockPlayerStart(ctx, playerID)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

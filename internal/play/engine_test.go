package play

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lownheur/prjt-web/internal/play/clock"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

type eventLog struct {
	mu       sync.Mutex
	ticks    []int
	changes  []int
	finished []ScoreReport
}

func (l *eventLog) OnTick(remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks = append(l.ticks, remaining)
}

func (l *eventLog) OnQuestionChanged(_ quiz.Question, index int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, index)
}

func (l *eventLog) OnFinished(report ScoreReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, report)
}

func (l *eventLog) Ticks() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.ticks...)
}

func (l *eventLog) Changes() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.changes...)
}

func (l *eventLog) Finished() []ScoreReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ScoreReport(nil), l.finished...)
}

func newTestEngine(t *testing.T) (*Engine, *clock.ManualScheduler, *eventLog) {
	t.Helper()
	sched := clock.NewManualScheduler(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	log := &eventLog{}
	e := NewEngine(log, Options{
		QuizID:    uuid.New(),
		PlayerID:  uuid.New(),
		Scheduler: sched,
		Logger:    zerolog.New(io.Discard),
	})
	return e, sched, log
}

func capitals() []quiz.Question {
	return []quiz.Question{
		{ID: "fr", Text: "Capital of France?", Type: quiz.TypeMultipleChoice, Choices: []string{"Paris", "Lyon", "Nice"}, CorrectAnswer: "paris"},
		{ID: "it", Text: "Capital of Italy?", Type: quiz.TypeFreeText, CorrectAnswer: "Rome"},
		{ID: "es", Text: "Capital of Spain?", Type: quiz.TypeMultipleChoice, Choices: []string{"Madrid", "Sevilla"}, CorrectAnswer: "Madrid"},
	}
}

func aggregate(seconds int) TimeConfig {
	return TimeConfig{Mode: ModeAggregate, TotalSeconds: seconds}
}

func perQuestion(seconds int) TimeConfig {
	return TimeConfig{Mode: ModePerQuestion, PerQuestionSeconds: seconds}
}

func TestBeginValidation(t *testing.T) {
	e, sched, _ := newTestEngine(t)

	assert.ErrorIs(t, e.Begin(nil, aggregate(10)), ErrEmptyQuiz)
	assert.ErrorIs(t, e.Begin(capitals(), aggregate(0)), ErrInvalidConfig)
	assert.ErrorIs(t, e.Begin(capitals(), perQuestion(-1)), ErrInvalidConfig)
	assert.ErrorIs(t, e.Begin(capitals(), TimeConfig{Mode: "sprint", TotalSeconds: 10}), ErrInvalidConfig)
	// the per-question field is ignored in aggregate mode
	assert.ErrorIs(t, e.Begin(capitals(), TimeConfig{Mode: ModeAggregate, PerQuestionSeconds: 10}), ErrInvalidConfig)

	dup := capitals()
	dup[2].ID = "fr"
	assert.ErrorIs(t, e.Begin(dup, aggregate(10)), ErrDuplicateQuestion)

	assert.Equal(t, PhaseNotStarted, e.Phase())
	assert.Equal(t, 0, sched.Pending())

	require.NoError(t, e.Begin(capitals(), aggregate(10)))
	assert.Equal(t, PhaseInProgress, e.Phase())
	assert.ErrorIs(t, e.Begin(capitals(), aggregate(10)), ErrAlreadyStarted)
}

func TestBeginPositionsAtFirstQuestion(t *testing.T) {
	e, _, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), perQuestion(15)))

	q, ok := e.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, "fr", q.ID)
	assert.Equal(t, 0, e.CurrentIndex())
	assert.Equal(t, 15, e.RemainingSeconds())
	assert.Equal(t, []int{0}, log.Changes())
	assert.Equal(t, perQuestion(15), e.Config())
}

func TestBeginSnapshotsQuestions(t *testing.T) {
	e, _, _ := newTestEngine(t)
	questions := capitals()
	require.NoError(t, e.Begin(questions, aggregate(30)))

	questions[0].CorrectAnswer = "Lyon"
	questions[0].Choices[0] = "Marseille"

	require.NoError(t, e.SubmitAnswer("Paris"))
	answers := e.Answers()
	require.Len(t, answers, 1)
	assert.True(t, answers[0].IsCorrect)
}

func TestAllCorrectAnswersScoreFull(t *testing.T) {
	for _, cfg := range []TimeConfig{aggregate(60), perQuestion(10)} {
		t.Run(string(cfg.Mode), func(t *testing.T) {
			e, sched, log := newTestEngine(t)
			require.NoError(t, e.Begin(capitals(), cfg))

			for _, answer := range []string{"Paris", "rome", " MADRID "} {
				require.NoError(t, e.SubmitAnswer(answer))
			}

			assert.Equal(t, PhaseFinished, e.Phase())
			report, ok := e.Report()
			require.True(t, ok)
			assert.Equal(t, 100, report.Percentage)
			assert.Equal(t, 3, report.AnsweredCount)
			assert.Equal(t, 3, report.TotalQuestions)
			assert.Equal(t, 3, report.CorrectCount)
			assert.Equal(t, EndCompleted, report.EndReason)
			assert.False(t, report.Abandoned)
			assert.Equal(t, 3, report.MaxStreak)
			assert.Len(t, log.Finished(), 1)
			assert.Equal(t, []int{0, 1, 2}, log.Changes())
			assert.Equal(t, 0, sched.Pending(), "clock should be stopped")

			_, ok = e.CurrentQuestion()
			assert.False(t, ok)
		})
	}
}

func TestGradingIgnoresCaseAndWhitespace(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(60)))

	require.NoError(t, e.SubmitAnswer("  Paris "))
	require.NoError(t, e.SubmitAnswer(""))
	require.NoError(t, e.SubmitAnswer("Barcelona"))

	answers := e.Answers()
	require.Len(t, answers, 3)
	assert.True(t, answers[0].IsCorrect)
	assert.False(t, answers[1].IsCorrect)
	assert.False(t, answers[2].IsCorrect)

	report, _ := e.Report()
	assert.Equal(t, 33, report.Percentage)
}

func TestSecondSubmissionForSameQuestionRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(60)))

	require.NoError(t, e.SubmitAnswerFor("fr", "Paris"))
	assert.ErrorIs(t, e.SubmitAnswerFor("fr", "Lyon"), ErrAlreadyAnswered)
	assert.ErrorIs(t, e.SubmitAnswerFor("es", "Madrid"), ErrQuestionMismatch)

	answers := e.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Paris", answers[0].GivenAnswer)
	assert.Equal(t, 1, e.CurrentIndex())
}

func TestSubmitOutsideSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	assert.ErrorIs(t, e.SubmitAnswer("Paris"), ErrNotInProgress)
	assert.ErrorIs(t, e.StageAnswer("Paris"), ErrNotInProgress)

	require.NoError(t, e.Begin(capitals()[:1], aggregate(60)))
	require.NoError(t, e.SubmitAnswer("Paris"))

	assert.ErrorIs(t, e.SubmitAnswer("Paris"), ErrSessionFinished)
	assert.ErrorIs(t, e.StageAnswer("Paris"), ErrSessionFinished)
}

func TestPerQuestionTimeSpent(t *testing.T) {
	e, sched, _ := newTestEngine(t)
	questions := []quiz.Question{capitals()[0], capitals()[2]}
	require.NoError(t, e.Begin(questions, perQuestion(30)))

	sched.Advance(20 * time.Second)
	assert.Equal(t, 10, e.RemainingSeconds())
	require.NoError(t, e.SubmitAnswer("Paris"))

	sched.Advance(25 * time.Second)
	assert.Equal(t, 5, e.RemainingSeconds())
	require.NoError(t, e.SubmitAnswer("Madrid"))

	answers := e.Answers()
	require.Len(t, answers, 2)
	require.NotNil(t, answers[0].TimeSpentSeconds)
	require.NotNil(t, answers[1].TimeSpentSeconds)
	assert.Equal(t, 20, *answers[0].TimeSpentSeconds)
	assert.Equal(t, 25, *answers[1].TimeSpentSeconds)

	report, ok := e.Report()
	require.True(t, ok)
	assert.Equal(t, 45, report.ElapsedSeconds)
	// 100 + 16 time bonus + 5 streak, then 100 + 8 + 10
	assert.Equal(t, 239, report.Points)
}

func TestAggregateHasNoTimeSpent(t *testing.T) {
	e, sched, _ := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(60)))

	sched.Advance(7 * time.Second)
	require.NoError(t, e.SubmitAnswer("Paris"))

	answers := e.Answers()
	require.Len(t, answers, 1)
	assert.Nil(t, answers[0].TimeSpentSeconds)
	assert.Equal(t, TriggerSubmitted, answers[0].Trigger)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 7, 0, time.UTC), answers[0].ResolvedAt)
}

func TestPerQuestionClockResetsOnEachTransition(t *testing.T) {
	e, sched, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), perQuestion(10)))

	sched.Advance(3 * time.Second)
	assert.Equal(t, 7, e.RemainingSeconds())
	require.NoError(t, e.SubmitAnswer("Paris"))
	assert.Equal(t, 10, e.RemainingSeconds())

	sched.Advance(9 * time.Second)
	assert.Equal(t, 1, e.RemainingSeconds())
	require.NoError(t, e.SubmitAnswer("Rome"))
	assert.Equal(t, 10, e.RemainingSeconds())

	for _, remaining := range log.Ticks() {
		assert.LessOrEqual(t, remaining, 10)
		assert.Greater(t, remaining, 0)
	}
	assert.Equal(t, 1, sched.Pending(), "only the current question's tick is scheduled")
}

func TestAggregateClockNeverResets(t *testing.T) {
	e, sched, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(10)))

	sched.Advance(2 * time.Second)
	require.NoError(t, e.SubmitAnswer("Paris"))
	assert.Equal(t, 8, e.RemainingSeconds())

	sched.Advance(3 * time.Second)
	require.NoError(t, e.SubmitAnswer("Rome"))
	assert.Equal(t, 5, e.RemainingSeconds())

	sched.Advance(2 * time.Second)

	ticks := log.Ticks()
	assert.Equal(t, []int{9, 8, 7, 6, 5, 4, 3}, ticks)
	for i := 1; i < len(ticks); i++ {
		assert.Less(t, ticks[i], ticks[i-1])
	}
}

type indexedTicks struct {
	eventLog
	engine *Engine
	ticks  [][2]int
}

func (l *indexedTicks) OnQuestionTick(index, remaining int) {
	l.mu.Lock()
	l.ticks = append(l.ticks, [2]int{index, remaining})
	first := len(l.ticks) == 1
	l.mu.Unlock()
	if first {
		// the question moves on before this tick is handled further
		_ = l.engine.SubmitAnswer("Paris")
	}
}

func TestTicksCarryQuestionIndexAtTickTime(t *testing.T) {
	sched := clock.NewManualScheduler(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	l := &indexedTicks{}
	e := NewEngine(l, Options{Scheduler: sched, Logger: zerolog.New(io.Discard)})
	l.engine = e
	require.NoError(t, e.Begin(capitals(), aggregate(10)))

	sched.Advance(time.Second)
	assert.Equal(t, 1, e.CurrentIndex())
	sched.Advance(time.Second)

	assert.Equal(t, [][2]int{{0, 9}, {1, 8}}, l.ticks)
	assert.Empty(t, l.Ticks(), "indexed listeners do not also get OnTick")
}

func TestPerQuestionDeadlineRecordsEmptyAnswer(t *testing.T) {
	e, sched, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals()[:2], perQuestion(3)))

	sched.Advance(3 * time.Second)

	answers := e.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "fr", answers[0].QuestionID)
	assert.Equal(t, "", answers[0].GivenAnswer)
	assert.False(t, answers[0].IsCorrect)
	assert.Equal(t, TriggerDeadline, answers[0].Trigger)
	require.NotNil(t, answers[0].TimeSpentSeconds)
	assert.Equal(t, 3, *answers[0].TimeSpentSeconds)

	assert.Equal(t, 1, e.CurrentIndex())
	assert.Equal(t, 3, e.RemainingSeconds())
	assert.Equal(t, PhaseInProgress, e.Phase())

	sched.Advance(3 * time.Second)
	assert.Equal(t, PhaseFinished, e.Phase())

	report, ok := e.Report()
	require.True(t, ok)
	assert.Equal(t, 2, report.AnsweredCount)
	assert.Equal(t, 0, report.CorrectCount)
	assert.Len(t, log.Finished(), 1)
	assert.Equal(t, 0, sched.Pending())
}

func TestPerQuestionDeadlineUsesStagedAnswer(t *testing.T) {
	e, sched, _ := newTestEngine(t)
	require.NoError(t, e.Begin(capitals()[:2], perQuestion(5)))

	require.NoError(t, e.StageAnswer("Lyon"))
	require.NoError(t, e.StageAnswer("  paris"))
	sched.Advance(5 * time.Second)

	answers := e.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "  paris", answers[0].GivenAnswer)
	assert.True(t, answers[0].IsCorrect)

	// staged input does not carry over to the next question
	sched.Advance(5 * time.Second)
	answers = e.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, "", answers[1].GivenAnswer)
}

func TestAggregateTimeoutFinishesWithoutAnswers(t *testing.T) {
	e, sched, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(5)))

	sched.Advance(5 * time.Second)

	assert.Equal(t, PhaseFinished, e.Phase())
	assert.Equal(t, []int{4, 3, 2, 1}, log.Ticks())

	report, ok := e.Report()
	require.True(t, ok)
	assert.LessOrEqual(t, report.AnsweredCount, 1)
	assert.Equal(t, 1, report.AnsweredCount)
	assert.Equal(t, 3, report.TotalQuestions)
	assert.Equal(t, 0, report.Percentage)
	assert.Equal(t, EndTimeExpired, report.EndReason)
	require.Len(t, report.Breakdown, 3)
	require.NotNil(t, report.Breakdown[0].Answer)
	assert.Equal(t, "", report.Breakdown[0].Answer.GivenAnswer)
	assert.Nil(t, report.Breakdown[1].Answer)
	assert.Nil(t, report.Breakdown[2].Answer)

	require.Len(t, log.Finished(), 1)
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(10 * time.Second)
	assert.Len(t, log.Ticks(), 4)
}

func TestAggregateTimeoutRecordsStagedAnswer(t *testing.T) {
	e, sched, _ := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(20)))

	require.NoError(t, e.SubmitAnswer("Paris"))
	require.NoError(t, e.StageAnswer("rome"))
	sched.Advance(20 * time.Second)

	report, ok := e.Report()
	require.True(t, ok)
	assert.Equal(t, 2, report.AnsweredCount)
	assert.Equal(t, 2, report.CorrectCount)
	// percentage is taken over the full quiz length
	assert.Equal(t, 67, report.Percentage)
	assert.Equal(t, TriggerDeadline, report.Breakdown[1].Answer.Trigger)
	assert.Nil(t, report.Breakdown[2].Answer)
	assert.Equal(t, 20, report.ElapsedSeconds)
}

func TestAbandonStopsTheSession(t *testing.T) {
	e, sched, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(30)))

	sched.Advance(2 * time.Second)
	e.Abandon()

	assert.Equal(t, PhaseFinished, e.Phase())
	assert.Equal(t, 0, sched.Pending())

	report, ok := e.Report()
	require.True(t, ok)
	assert.True(t, report.Abandoned)
	assert.Equal(t, EndAbandoned, report.EndReason)

	sched.Advance(30 * time.Second)
	assert.Equal(t, []int{29, 28}, log.Ticks())

	e.Abandon()
	assert.Len(t, log.Finished(), 1)
	assert.ErrorIs(t, e.SubmitAnswer("Paris"), ErrSessionFinished)
}

func TestAbandonBeforeBegin(t *testing.T) {
	e, _, log := newTestEngine(t)
	e.Abandon()

	assert.Equal(t, PhaseFinished, e.Phase())
	assert.ErrorIs(t, e.Begin(capitals(), aggregate(10)), ErrAlreadyStarted)
	require.Len(t, log.Finished(), 1)
	assert.True(t, log.Finished()[0].Abandoned)
}

func TestLateClockEventsAreIgnored(t *testing.T) {
	e, _, log := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), perQuestion(10)))

	oldCycle := e.clock.Cycle()
	require.NoError(t, e.SubmitAnswer("Paris"))

	// a deadline from the first question's countdown arrives after the reset
	e.onClockDeadline(clock.Event{Remaining: 0, Cycle: oldCycle})
	e.onClockTick(clock.Event{Remaining: 3, Cycle: oldCycle})

	assert.Len(t, e.Answers(), 1)
	assert.Equal(t, 1, e.CurrentIndex())
	assert.Empty(t, log.Ticks())

	e.Abandon()
	e.onClockTick(clock.Event{Remaining: 9, Cycle: e.clock.Cycle()})
	e.onClockDeadline(clock.Event{Remaining: 0, Cycle: e.clock.Cycle()})

	assert.Empty(t, log.Ticks())
	assert.Len(t, e.Answers(), 1)
	assert.Len(t, log.Finished(), 1)
}

type autoPlayer struct {
	engine   *Engine
	answers  map[string]string
	progress []Progress
	report   *ScoreReport
}

func (a *autoPlayer) OnTick(int) {}

func (a *autoPlayer) OnQuestionChanged(q quiz.Question, _ int) {
	a.progress = append(a.progress, a.engine.Progress())
	_ = a.engine.SubmitAnswerFor(q.ID, a.answers[q.ID])
}

func (a *autoPlayer) OnFinished(ScoreReport) {
	r, _ := a.engine.Report()
	a.report = &r
}

func TestListenerMayCallBackIntoEngine(t *testing.T) {
	sched := clock.NewManualScheduler(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	player := &autoPlayer{answers: map[string]string{"fr": "Paris", "it": "Rome", "es": "Madrid"}}
	e := NewEngine(player, Options{Scheduler: sched, Logger: zerolog.New(io.Discard)})
	player.engine = e

	require.NoError(t, e.Begin(capitals(), perQuestion(10)))

	assert.Equal(t, PhaseFinished, e.Phase())
	require.NotNil(t, player.report)
	assert.Equal(t, 100, player.report.Percentage)
	require.Len(t, player.progress, 3)
	assert.Equal(t, "it", player.progress[1].Question.ID)
	assert.Empty(t, player.progress[1].Question.Choices)
}

func TestProgressHidesCorrectAnswer(t *testing.T) {
	e, sched, _ := newTestEngine(t)
	require.NoError(t, e.Begin(capitals(), aggregate(30)))
	require.NoError(t, e.StageAnswer("Par"))
	sched.Advance(4 * time.Second)

	p := e.Progress()
	assert.Equal(t, e.ID(), p.SessionID)
	assert.Equal(t, PhaseInProgress, p.Phase)
	assert.Equal(t, 26, p.Remaining)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, "Par", p.Staged)
	require.NotNil(t, p.Question)
	assert.Equal(t, []string{"Paris", "Lyon", "Nice"}, p.Question.Choices)
}

func TestSubmitRacingDeadlineRecordsOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		e, sched, log := newTestEngine(t)
		require.NoError(t, e.Begin(capitals()[:1], perQuestion(1)))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			sched.Advance(time.Second)
		}()
		go func() {
			defer wg.Done()
			err := e.SubmitAnswer("Paris")
			if err != nil {
				assert.ErrorIs(t, err, ErrSessionFinished)
			}
		}()
		wg.Wait()

		assert.Len(t, e.Answers(), 1)
		assert.Len(t, log.Finished(), 1)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("total")
	require.NoError(t, err)
	assert.Equal(t, ModeAggregate, m)

	m, err = ParseMode(" Per_Question ")
	require.NoError(t, err)
	assert.Equal(t, ModePerQuestion, m)

	_, err = ParseMode("marathon")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

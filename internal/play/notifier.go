package play

import (
	"github.com/google/uuid"

	"github.com/Lownheur/prjt-web/internal/quiz"
)

// EventKind identifies a session event pushed to players.
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventQuestionChanged EventKind = "question_changed"
	EventTick            EventKind = "tick"
	EventFinished        EventKind = "finished"
)

// Event is a session notification addressed to the session's player.
// Question is set for started and question_changed, Report for finished.
type Event struct {
	Kind      EventKind
	SessionID uuid.UUID
	QuizID    uuid.UUID
	PlayerID  uuid.UUID
	Config    TimeConfig
	Index     int
	Total     int
	Remaining int
	Question  *QuestionView
	Report    *ScoreReport
}

// Notifier delivers session events to a transport.
type Notifier interface {
	Notify(ev Event)
}

// sessionListener turns engine callbacks into service work for one session.
// The engine delivers callbacks one at a time, so started needs no lock.
type sessionListener struct {
	svc     *Service
	session *Session
	started bool
}

func (l *sessionListener) OnTick(remaining int) {
	l.OnQuestionTick(l.session.engine.CurrentIndex(), remaining)
}

func (l *sessionListener) OnQuestionTick(index, remaining int) {
	l.svc.notify(Event{
		Kind:      EventTick,
		SessionID: l.session.ID,
		QuizID:    l.session.QuizID,
		PlayerID:  l.session.PlayerID,
		Index:     index,
		Remaining: remaining,
	})
}

func (l *sessionListener) OnQuestionChanged(q quiz.Question, index int) {
	view := NewQuestionView(q, index, l.session.Total)
	if !l.started {
		l.started = true
		l.svc.notify(Event{
			Kind:      EventStarted,
			SessionID: l.session.ID,
			QuizID:    l.session.QuizID,
			PlayerID:  l.session.PlayerID,
			Config:    l.session.Config,
			Index:     index,
			Total:     l.session.Total,
			Remaining: l.session.engine.RemainingSeconds(),
			Question:  &view,
		})
	}
	l.svc.notify(Event{
		Kind:      EventQuestionChanged,
		SessionID: l.session.ID,
		QuizID:    l.session.QuizID,
		PlayerID:  l.session.PlayerID,
		Index:     index,
		Total:     l.session.Total,
		Remaining: l.session.engine.RemainingSeconds(),
		Question:  &view,
	})
	l.svc.saveProgress(l.session)
}

func (l *sessionListener) OnFinished(report ScoreReport) {
	l.svc.finish(l.session, report)
}

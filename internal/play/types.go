package play

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lownheur/prjt-web/internal/quiz"
)

// Mode selects how the countdown is applied to a session.
type Mode string

// Timing modes.
const (
	ModeAggregate   Mode = "aggregate"
	ModePerQuestion Mode = "per_question"
)

// ParseMode accepts the wire names of a timing mode. "total" is kept as an
// alias of aggregate for older clients.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggregate", "total":
		return ModeAggregate, nil
	case "per_question", "per-question":
		return ModePerQuestion, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// TimeConfig is the timing chosen for one session. Only the field matching
// Mode is meaningful.
type TimeConfig struct {
	Mode               Mode `json:"mode"`
	TotalSeconds       int  `json:"total_seconds,omitempty"`
	PerQuestionSeconds int  `json:"per_question_seconds,omitempty"`
}

// Validate checks that the seconds for the selected mode are positive.
func (c TimeConfig) Validate() error {
	switch c.Mode {
	case ModeAggregate:
		if c.TotalSeconds <= 0 {
			return fmt.Errorf("%w: total seconds must be positive", ErrInvalidConfig)
		}
	case ModePerQuestion:
		if c.PerQuestionSeconds <= 0 {
			return fmt.Errorf("%w: per-question seconds must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

func (c TimeConfig) initialSeconds() int {
	if c.Mode == ModePerQuestion {
		return c.PerQuestionSeconds
	}
	return c.TotalSeconds
}

// Phase is the lifecycle position of a session.
type Phase string

// Session phases. Finished is terminal.
const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// Trigger records what resolved a question.
type Trigger string

const (
	TriggerSubmitted Trigger = "submitted"
	TriggerDeadline  Trigger = "deadline"
)

// EndReason records why a session finished.
type EndReason string

const (
	EndCompleted   EndReason = "completed"
	EndTimeExpired EndReason = "time_expired"
	EndAbandoned   EndReason = "abandoned"
)

// AnswerRecord is the resolved outcome for one question. TimeSpentSeconds is
// only set in per-question mode.
type AnswerRecord struct {
	QuestionID       string    `json:"question_id"`
	GivenAnswer      string    `json:"given_answer"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds *int      `json:"time_spent_seconds,omitempty"`
	Trigger          Trigger   `json:"trigger"`
	ResolvedAt       time.Time `json:"resolved_at"`
}

// BreakdownItem pairs a question with its record; Answer is nil for
// questions the session never reached.
type BreakdownItem struct {
	Question quiz.Question `json:"question"`
	Answer   *AnswerRecord `json:"answer,omitempty"`
}

// ScoreReport summarises a finished session.
type ScoreReport struct {
	SessionID      uuid.UUID       `json:"session_id"`
	QuizID         uuid.UUID       `json:"quiz_id"`
	PlayerID       uuid.UUID       `json:"player_id"`
	Mode           Mode            `json:"mode"`
	TotalQuestions int             `json:"total_questions"`
	AnsweredCount  int             `json:"answered_count"`
	CorrectCount   int             `json:"correct_count"`
	Percentage     int             `json:"percentage"`
	Points         int             `json:"points"`
	MaxStreak      int             `json:"max_streak"`
	Breakdown      []BreakdownItem `json:"breakdown"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	EndReason      EndReason       `json:"end_reason"`
	Abandoned      bool            `json:"abandoned"`
}

// Listener observes a session. Callbacks are delivered in order, outside the
// engine lock, so they may call back into the engine.
type Listener interface {
	OnTick(remaining int)
	OnQuestionChanged(q quiz.Question, index int)
	OnFinished(report ScoreReport)
}

// QuestionTickListener is an optional Listener extension. When implemented,
// ticks arrive with the index of the question that was current when the
// clock ticked, instead of through OnTick.
type QuestionTickListener interface {
	OnQuestionTick(index, remaining int)
}

// ListenerFuncs adapts optional functions to a Listener.
type ListenerFuncs struct {
	Tick            func(remaining int)
	QuestionChanged func(q quiz.Question, index int)
	Finished        func(report ScoreReport)
}

func (l ListenerFuncs) OnTick(remaining int) {
	if l.Tick != nil {
		l.Tick(remaining)
	}
}

func (l ListenerFuncs) OnQuestionChanged(q quiz.Question, index int) {
	if l.QuestionChanged != nil {
		l.QuestionChanged(q, index)
	}
}

func (l ListenerFuncs) OnFinished(report ScoreReport) {
	if l.Finished != nil {
		l.Finished(report)
	}
}

// QuestionView is what a player may see of a question while playing.
type QuestionView struct {
	ID       string    `json:"id"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Text     string    `json:"text"`
	ImageURL string    `json:"image_url,omitempty"`
	Type     quiz.Type `json:"type"`
	Choices  []string  `json:"choices,omitempty"`
}

// NewQuestionView strips the correct answer from q.
func NewQuestionView(q quiz.Question, index, total int) QuestionView {
	return QuestionView{
		ID:       q.ID,
		Index:    index,
		Total:    total,
		Text:     q.Text,
		ImageURL: q.ImageURL,
		Type:     q.Type,
		Choices:  append([]string(nil), q.Choices...),
	}
}

// Progress is a point-in-time view of a session, safe to send to its player.
type Progress struct {
	SessionID uuid.UUID     `json:"session_id"`
	QuizID    uuid.UUID     `json:"quiz_id"`
	PlayerID  uuid.UUID     `json:"player_id"`
	Phase     Phase         `json:"phase"`
	Config    TimeConfig    `json:"config"`
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Remaining int           `json:"remaining_seconds"`
	Answered  int           `json:"answered"`
	Staged    string        `json:"staged_answer,omitempty"`
	Question  *QuestionView `json:"question,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

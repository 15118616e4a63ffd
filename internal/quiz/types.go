package quiz

import (
	"errors"

	"github.com/google/uuid"
)

// Type distinguishes how a question is answered.
type Type string

// Question types.
const (
	TypeFreeText       Type = "free_text"
	TypeMultipleChoice Type = "multiple_choice"
)

// MaxChoices is the number of choice slots a multiple-choice question can fill.
const MaxChoices = 4

var (
	// ErrNotFound is returned when the quiz does not exist.
	ErrNotFound = errors.New("quiz not found")
	// ErrAccessDenied is returned when a private quiz is requested by someone other than its owner.
	ErrAccessDenied = errors.New("quiz access denied")
	// ErrNoQuestions is returned when the quiz exists but has nothing to play.
	ErrNoQuestions = errors.New("quiz has no questions")
)

// Question is read-only content supplied to a play session.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Text          string   `json:"text" yaml:"text"`
	ImageURL      string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Type          Type     `json:"type" yaml:"type"`
	Choices       []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	Order         int      `json:"order" yaml:"order"`
}

// Clone returns a deep copy so later edits never leak into a running session.
func (q Question) Clone() Question {
	if q.Choices != nil {
		q.Choices = append([]string(nil), q.Choices...)
	}
	return q
}

// Quiz holds the theme metadata needed to decide who may play it.
type Quiz struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
}

// Pack bundles a quiz with its ordered questions.
type Pack struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// CanPlay reports whether playerID may load the quiz.
func (q Quiz) CanPlay(playerID uuid.UUID) bool {
	return q.IsPublic || q.OwnerID == playerID
}

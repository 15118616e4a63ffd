package play

import "errors"

// Engine errors.
var (
	ErrEmptyQuiz         = errors.New("quiz has no questions")
	ErrInvalidConfig     = errors.New("invalid time config")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrNotInProgress     = errors.New("session not in progress")
	ErrAlreadyAnswered   = errors.New("question already answered")
	ErrSessionFinished   = errors.New("session finished")
	ErrDuplicateQuestion = errors.New("duplicate question id")
	ErrQuestionMismatch  = errors.New("question is not the current question")
)

// Service errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStartInFlight   = errors.New("another session start is in progress for this player")
)

package errors

// Error codes shared by the REST and WebSocket surfaces.
const (
	// Authentication errors
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeInvalidConfig    = "invalid_config"

	// Quiz errors
	ErrCodeQuizNotFound     = "quiz_not_found"
	ErrCodeQuizAccessDenied = "quiz_access_denied"
	ErrCodeEmptyQuiz        = "empty_quiz"
	ErrCodeInvalidQuizID    = "invalid_quiz_id"

	// Session errors
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeInvalidSessionID   = "invalid_session_id"
	ErrCodeSessionFinished    = "session_finished"
	ErrCodeNotInProgress      = "not_in_progress"
	ErrCodeAlreadyStarted     = "already_started"
	ErrCodeAlreadyAnswered    = "already_answered"
	ErrCodeQuestionMismatch   = "question_mismatch"
	ErrCodeStartInFlight      = "start_in_flight"
	ErrCodeDuplicateQuestions = "duplicate_questions"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"

	// Leaderboard and history errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeResultsFetchFailed     = "results_fetch_failed"
)

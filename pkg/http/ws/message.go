package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeStartSession    = "start_session"
	TypeStageAnswer     = "stage_answer"
	TypeSubmitAnswer    = "submit_answer"
	TypeAbandonSession  = "abandon_session"
	TypeRequestProgress = "request_progress"
	TypeWatchQuiz       = "watch_quiz"

	// Server -> Client
	TypeSessionStarted    = "session_started"
	TypeQuestionChanged   = "question_changed"
	TypeTimerTick         = "timer_tick"
	TypeAnswerAck         = "answer_ack"
	TypeSessionFinished   = "session_finished"
	TypeProgressUpdate    = "progress_update"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeError             = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: data}, nil
}

// Client Messages (incoming)

type StartSessionPayload struct {
	QuizID             string `json:"quiz_id"`
	Mode               string `json:"mode"`
	TotalSeconds       int    `json:"total_seconds,omitempty"`
	PerQuestionSeconds int    `json:"per_question_seconds,omitempty"`
}

type StageAnswerPayload struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type SubmitAnswerPayload struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type AbandonSessionPayload struct {
	SessionID string `json:"session_id"`
}

type RequestProgressPayload struct {
	SessionID string `json:"session_id"`
}

type WatchQuizPayload struct {
	QuizID string `json:"quiz_id"`
}

// Server Messages (outgoing)

type SessionStartedPayload struct {
	SessionID          string `json:"session_id"`
	QuizID             string `json:"quiz_id"`
	Mode               string `json:"mode"`
	TotalSeconds       int    `json:"total_seconds,omitempty"`
	PerQuestionSeconds int    `json:"per_question_seconds,omitempty"`
	QuestionCount      int    `json:"question_count"`
}

type QuestionPayload struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Text     string   `json:"text"`
	ImageURL string   `json:"image_url,omitempty"`
	Type     string   `json:"type"`
	Choices  []string `json:"choices,omitempty"`
}

type QuestionChangedPayload struct {
	SessionID string          `json:"session_id"`
	Question  QuestionPayload `json:"question"`
}

type TimerTickPayload struct {
	SessionID        string `json:"session_id"`
	QuestionIndex    int    `json:"question_index"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type AnswerAckPayload struct {
	SessionID        string `json:"session_id"`
	QuestionID       string `json:"question_id"`
	Accepted         bool   `json:"accepted"`
	ServerReceivedAt string `json:"server_received_at"`
}

type ProgressUpdatePayload struct {
	SessionID        string           `json:"session_id"`
	Phase            string           `json:"phase"`
	Index            int              `json:"index"`
	Total            int              `json:"total"`
	Answered         int              `json:"answered"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Question         *QuestionPayload `json:"question,omitempty"`
}

type SessionFinishedPayload struct {
	SessionID      string            `json:"session_id"`
	QuizID         string            `json:"quiz_id"`
	EndReason      string            `json:"end_reason"`
	TotalQuestions int               `json:"total_questions"`
	AnsweredCount  int               `json:"answered_count"`
	CorrectCount   int               `json:"correct_count"`
	Percentage     int               `json:"percentage"`
	Points         int               `json:"points"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Breakdown      []BreakdownResult `json:"breakdown"`
}

// BreakdownResult reveals the correct answer once the session is over.
type BreakdownResult struct {
	QuestionID       string `json:"question_id"`
	Text             string `json:"text"`
	CorrectAnswer    string `json:"correct_answer"`
	GivenAnswer      string `json:"given_answer,omitempty"`
	Answered         bool   `json:"answered"`
	IsCorrect        bool   `json:"is_correct"`
	TimeSpentSeconds *int   `json:"time_spent_seconds,omitempty"`
}

type LeaderboardUpdatePayload struct {
	QuizID string             `json:"quiz_id"`
	Top    []LeaderboardEntry `json:"top"`
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	Points     int    `json:"points"`
	Percentage int    `json:"percentage"`
	Sessions   int    `json:"sessions"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

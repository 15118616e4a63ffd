package play

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lownheur/prjt-web/internal/identity"
	"github.com/Lownheur/prjt-web/internal/quiz"
	httperrors "github.com/Lownheur/prjt-web/pkg/http/errors"
)

// ResultSummary is one row of a player's session history.
type ResultSummary struct {
	SessionID      uuid.UUID `json:"session_id"`
	QuizID         uuid.UUID `json:"quiz_id"`
	Mode           Mode      `json:"mode"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	Percentage     int       `json:"percentage"`
	Points         int       `json:"points"`
	EndReason      EndReason `json:"end_reason"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	FinishedAt     time.Time `json:"finished_at"`
}

// ResultHistory lists past results for a player.
type ResultHistory interface {
	ListPlayerResults(ctx context.Context, playerID uuid.UUID, limit int) ([]ResultSummary, error)
}

// HTTPHandlers provides REST endpoints for sessions.
type HTTPHandlers struct {
	service *Service
	history ResultHistory
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints. history may be nil.
func NewHTTPHandlers(service *Service, history ResultHistory, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		history: history,
		logger:  logger.With().Str("component", "play_http").Logger(),
	}
}

// StartSessionRequest is the body of POST /v1/sessions.
type StartSessionRequest struct {
	QuizID             string `json:"quiz_id"`
	Mode               string `json:"mode"`
	TotalSeconds       int    `json:"total_seconds,omitempty"`
	PerQuestionSeconds int    `json:"per_question_seconds,omitempty"`
}

type submitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type stageAnswerRequest struct {
	Answer string `json:"answer"`
}

type sessionResponse struct {
	Progress Progress     `json:"progress"`
	Report   *ScoreReport `json:"report,omitempty"`
}

// Register mounts the session routes on mux behind wrap (usually auth middleware).
func (h *HTTPHandlers) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /v1/sessions", wrap(http.HandlerFunc(h.StartSession)))
	mux.Handle("GET /v1/sessions/{id}", wrap(http.HandlerFunc(h.GetSession)))
	mux.Handle("POST /v1/sessions/{id}/answers", wrap(http.HandlerFunc(h.SubmitAnswer)))
	mux.Handle("PUT /v1/sessions/{id}/staged", wrap(http.HandlerFunc(h.StageAnswer)))
	mux.Handle("DELETE /v1/sessions/{id}", wrap(http.HandlerFunc(h.AbandonSession)))
	mux.Handle("GET /v1/players/me/results", wrap(http.HandlerFunc(h.ListResults)))
}

// StartSession handles POST /v1/sessions
func (h *HTTPHandlers) StartSession(w http.ResponseWriter, r *http.Request) {
	playerID, ok := identity.PlayerIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidQuizID, "quiz_id must be a UUID", "quiz_id")
		return
	}

	session, err := h.service.Start(r.Context(), StartRequest{
		PlayerID: playerID,
		QuizID:   quizID,
		Config: TimeConfig{
			Mode:               Mode(req.Mode),
			TotalSeconds:       req.TotalSeconds,
			PerQuestionSeconds: req.PerQuestionSeconds,
		},
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("player_id", playerID.String()).Msg("start session failed")
		RespondError(w, err)
		return
	}

	httperrors.RespondJSON(w, http.StatusCreated, sessionResponse{Progress: session.Engine().Progress()})
}

// GetSession handles GET /v1/sessions/{id}
func (h *HTTPHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	playerID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	progress, err := h.service.Progress(r.Context(), sessionID, playerID)
	if err != nil {
		RespondError(w, err)
		return
	}

	resp := sessionResponse{Progress: progress}
	if progress.Phase == PhaseFinished {
		if report, err := h.service.Report(r.Context(), sessionID, playerID); err == nil {
			resp.Report = &report
		}
	}
	httperrors.RespondJSON(w, http.StatusOK, resp)
}

// SubmitAnswer handles POST /v1/sessions/{id}/answers
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	playerID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	if err := h.service.Submit(r.Context(), sessionID, playerID, req.QuestionID, req.Answer); err != nil {
		RespondError(w, err)
		return
	}

	progress, err := h.service.Progress(r.Context(), sessionID, playerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	resp := sessionResponse{Progress: progress}
	if progress.Phase == PhaseFinished {
		if report, err := h.service.Report(r.Context(), sessionID, playerID); err == nil {
			resp.Report = &report
		}
	}
	httperrors.RespondJSON(w, http.StatusAccepted, resp)
}

// StageAnswer handles PUT /v1/sessions/{id}/staged
func (h *HTTPHandlers) StageAnswer(w http.ResponseWriter, r *http.Request) {
	playerID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	var req stageAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	if err := h.service.Stage(r.Context(), sessionID, playerID, req.Answer); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AbandonSession handles DELETE /v1/sessions/{id}
func (h *HTTPHandlers) AbandonSession(w http.ResponseWriter, r *http.Request) {
	playerID, sessionID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	if err := h.service.Abandon(r.Context(), sessionID, playerID); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListResults handles GET /v1/players/me/results?limit=20
func (h *HTTPHandlers) ListResults(w http.ResponseWriter, r *http.Request) {
	playerID, ok := identity.PlayerIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	if h.history == nil {
		httperrors.RespondError(w, http.StatusServiceUnavailable, httperrors.ErrCodeServiceUnavailable, "Result history is not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "limit must be between 1 and 100", "limit")
			return
		}
		limit = n
	}

	results, err := h.history.ListPlayerResults(r.Context(), playerID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("player_id", playerID.String()).Msg("list results failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeResultsFetchFailed, "Failed to load results")
		return
	}
	if results == nil {
		results = []ResultSummary{}
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func (h *HTTPHandlers) sessionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	playerID, ok := identity.PlayerIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
		return uuid.Nil, uuid.Nil, false
	}
	return playerID, sessionID, true
}

// ErrorCode maps a service error to an HTTP status and a stable error code.
func ErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, httperrors.ErrCodeSessionNotFound
	case errors.Is(err, quiz.ErrNotFound):
		return http.StatusNotFound, httperrors.ErrCodeQuizNotFound
	case errors.Is(err, quiz.ErrAccessDenied):
		return http.StatusForbidden, httperrors.ErrCodeQuizAccessDenied
	case errors.Is(err, quiz.ErrNoQuestions), errors.Is(err, ErrEmptyQuiz):
		return http.StatusUnprocessableEntity, httperrors.ErrCodeEmptyQuiz
	case errors.Is(err, ErrDuplicateQuestion):
		return http.StatusUnprocessableEntity, httperrors.ErrCodeDuplicateQuestions
	case errors.Is(err, ErrInvalidConfig):
		return http.StatusBadRequest, httperrors.ErrCodeInvalidConfig
	case errors.Is(err, ErrAlreadyAnswered):
		return http.StatusConflict, httperrors.ErrCodeAlreadyAnswered
	case errors.Is(err, ErrQuestionMismatch):
		return http.StatusConflict, httperrors.ErrCodeQuestionMismatch
	case errors.Is(err, ErrSessionFinished):
		return http.StatusConflict, httperrors.ErrCodeSessionFinished
	case errors.Is(err, ErrNotInProgress):
		return http.StatusConflict, httperrors.ErrCodeNotInProgress
	case errors.Is(err, ErrAlreadyStarted):
		return http.StatusConflict, httperrors.ErrCodeAlreadyStarted
	case errors.Is(err, ErrStartInFlight):
		return http.StatusConflict, httperrors.ErrCodeStartInFlight
	default:
		return http.StatusInternalServerError, httperrors.ErrCodeInternalError
	}
}

// RespondError writes err using the session error mapping.
func RespondError(w http.ResponseWriter, err error) {
	status, code := ErrorCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	httperrors.RespondError(w, status, code, message)
}

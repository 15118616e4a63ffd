package play

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Lownheur/prjt-web/internal/metrics"
	httperrors "github.com/Lownheur/prjt-web/pkg/http/errors"
	ws "github.com/Lownheur/prjt-web/pkg/http/ws"
)

// Handler manages WebSocket connections and routes session messages. It is
// also the Notifier that pushes session events to the connected player.
type Handler struct {
	service  *Service
	hub      *ws.Hub
	verifier TokenVerifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewHandler creates a session WebSocket handler and subscribes it to the
// service's events.
func NewHandler(service *Service, hub *ws.Hub, verifier TokenVerifier, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	if m == nil {
		m = service.metrics
	}
	h := &Handler{
		service:  service,
		hub:      hub,
		verifier: verifier,
		metrics:  m,
		logger:   logger.With().Str("component", "play_ws").Logger(),
	}
	service.Subscribe(h)
	return h
}

// HandleConnection serves an authenticated WebSocket connection until it closes.
func (h *Handler) HandleConnection(conn *websocket.Conn, playerID uuid.UUID) {
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(playerID, wsConn)
	h.metrics.WSConnections.Inc()

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), playerID, msg)
	})

	h.hub.UnregisterConnection(playerID, wsConn)
	h.metrics.WSConnections.Dec()
}

func (h *Handler) handleMessage(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeStartSession:
		return h.handleStartSession(ctx, playerID, msg)
	case ws.TypeStageAnswer:
		return h.handleStageAnswer(ctx, playerID, msg)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, playerID, msg)
	case ws.TypeAbandonSession:
		return h.handleAbandonSession(ctx, playerID, msg)
	case ws.TypeRequestProgress:
		return h.handleRequestProgress(ctx, playerID, msg)
	case ws.TypeWatchQuiz:
		return h.handleWatchQuiz(playerID, msg)
	default:
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleStartSession(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.StartSessionPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid start_session payload")
	}
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidQuizID, "Invalid quiz ID")
	}

	// session_started and the first question arrive through Notify
	_, err = h.service.Start(ctx, StartRequest{
		PlayerID: playerID,
		QuizID:   quizID,
		Config: TimeConfig{
			Mode:               Mode(req.Mode),
			TotalSeconds:       req.TotalSeconds,
			PerQuestionSeconds: req.PerQuestionSeconds,
		},
	})
	if err != nil {
		return h.sendServiceError(playerID, msg.RequestID, err)
	}
	return nil
}

func (h *Handler) handleStageAnswer(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.StageAnswerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid stage_answer payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
	}

	if err := h.service.Stage(ctx, sessionID, playerID, req.Answer); err != nil {
		return h.sendServiceError(playerID, msg.RequestID, err)
	}
	return nil
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
	}

	receivedAt := time.Now().UTC()
	if err := h.service.Submit(ctx, sessionID, playerID, req.QuestionID, req.Answer); err != nil {
		return h.sendServiceError(playerID, msg.RequestID, err)
	}

	return h.send(playerID, msg.RequestID, ws.TypeAnswerAck, ws.AnswerAckPayload{
		SessionID:        sessionID.String(),
		QuestionID:       req.QuestionID,
		Accepted:         true,
		ServerReceivedAt: receivedAt.Format(time.RFC3339Nano),
	})
}

func (h *Handler) handleAbandonSession(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.AbandonSessionPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid abandon_session payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
	}

	if err := h.service.Abandon(ctx, sessionID, playerID); err != nil {
		return h.sendServiceError(playerID, msg.RequestID, err)
	}
	return nil
}

func (h *Handler) handleRequestProgress(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.RequestProgressPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid request_progress payload")
	}

	var sessionID uuid.UUID
	if req.SessionID == "" {
		session, ok := h.service.ActiveSession(playerID)
		if !ok {
			return h.sendServiceError(playerID, msg.RequestID, ErrSessionNotFound)
		}
		sessionID = session.ID
	} else {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
		}
		sessionID = id
	}

	progress, err := h.service.Progress(ctx, sessionID, playerID)
	if err != nil {
		return h.sendServiceError(playerID, msg.RequestID, err)
	}

	payload := ws.ProgressUpdatePayload{
		SessionID:        progress.SessionID.String(),
		Phase:            string(progress.Phase),
		Index:            progress.Index,
		Total:            progress.Total,
		Answered:         progress.Answered,
		RemainingSeconds: progress.Remaining,
	}
	if progress.Question != nil {
		q := questionPayload(*progress.Question)
		payload.Question = &q
	}
	return h.send(playerID, msg.RequestID, ws.TypeProgressUpdate, payload)
}

func (h *Handler) handleWatchQuiz(playerID uuid.UUID, msg ws.Message) error {
	var req ws.WatchQuizPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid watch_quiz payload")
	}
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidQuizID, "Invalid quiz ID")
	}

	h.hub.WatchQuiz(quizID, playerID)
	return nil
}

// Notify implements Notifier by forwarding events to the player's connection.
func (h *Handler) Notify(ev Event) {
	var (
		msgType string
		payload any
	)

	switch ev.Kind {
	case EventStarted:
		msgType = ws.TypeSessionStarted
		payload = ws.SessionStartedPayload{
			SessionID:          ev.SessionID.String(),
			QuizID:             ev.QuizID.String(),
			Mode:               string(ev.Config.Mode),
			TotalSeconds:       ev.Config.TotalSeconds,
			PerQuestionSeconds: ev.Config.PerQuestionSeconds,
			QuestionCount:      ev.Total,
		}
	case EventQuestionChanged:
		if ev.Question == nil {
			return
		}
		msgType = ws.TypeQuestionChanged
		payload = ws.QuestionChangedPayload{
			SessionID: ev.SessionID.String(),
			Question:  questionPayload(*ev.Question),
		}
	case EventTick:
		msgType = ws.TypeTimerTick
		payload = ws.TimerTickPayload{
			SessionID:        ev.SessionID.String(),
			QuestionIndex:    ev.Index,
			RemainingSeconds: ev.Remaining,
		}
	case EventFinished:
		if ev.Report == nil {
			return
		}
		msgType = ws.TypeSessionFinished
		payload = finishedPayload(*ev.Report)
	default:
		return
	}

	if err := h.send(ev.PlayerID, "", msgType, payload); err != nil && err != ws.ErrConnectionNotFound {
		h.logger.Warn().
			Err(err).
			Str("player_id", ev.PlayerID.String()).
			Str("type", msgType).
			Msg("failed to push session event")
	}
}

func (h *Handler) send(playerID uuid.UUID, requestID, msgType string, payload any) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	msg.RequestID = requestID
	return h.hub.SendToPlayer(playerID, msg)
}

func (h *Handler) sendError(playerID uuid.UUID, requestID, code, message string) error {
	return h.send(playerID, requestID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

func (h *Handler) sendServiceError(playerID uuid.UUID, requestID string, err error) error {
	_, code := ErrorCode(err)
	message := err.Error()
	if code == httperrors.ErrCodeInternalError {
		h.logger.Error().Err(err).Str("player_id", playerID.String()).Msg("session request failed")
		message = "Internal server error"
	}
	return h.sendError(playerID, requestID, code, message)
}

func questionPayload(v QuestionView) ws.QuestionPayload {
	return ws.QuestionPayload{
		ID:       v.ID,
		Index:    v.Index,
		Total:    v.Total,
		Text:     v.Text,
		ImageURL: v.ImageURL,
		Type:     string(v.Type),
		Choices:  v.Choices,
	}
}

func finishedPayload(r ScoreReport) ws.SessionFinishedPayload {
	breakdown := make([]ws.BreakdownResult, 0, len(r.Breakdown))
	for _, item := range r.Breakdown {
		res := ws.BreakdownResult{
			QuestionID:    item.Question.ID,
			Text:          item.Question.Text,
			CorrectAnswer: item.Question.CorrectAnswer,
		}
		if item.Answer != nil {
			res.Answered = true
			res.GivenAnswer = item.Answer.GivenAnswer
			res.IsCorrect = item.Answer.IsCorrect
			res.TimeSpentSeconds = item.Answer.TimeSpentSeconds
		}
		breakdown = append(breakdown, res)
	}

	return ws.SessionFinishedPayload{
		SessionID:      r.SessionID.String(),
		QuizID:         r.QuizID.String(),
		EndReason:      string(r.EndReason),
		TotalQuestions: r.TotalQuestions,
		AnsweredCount:  r.AnsweredCount,
		CorrectCount:   r.CorrectCount,
		Percentage:     r.Percentage,
		Points:         r.Points,
		ElapsedSeconds: r.ElapsedSeconds,
		Breakdown:      breakdown,
	}
}

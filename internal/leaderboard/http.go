package leaderboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/Lownheur/prjt-web/pkg/http/errors"
	ws "github.com/Lownheur/prjt-web/pkg/http/ws"
)

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc       *Service
	snapshots SnapshotStore
	logger    zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. snapshots may be nil.
func NewHTTPHandler(svc *Service, snapshots SnapshotStore, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the current leaderboard of a quiz.
// Route: GET /v1/quizzes/{id}/leaderboard?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	quizID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidQuizID, "Invalid quiz ID")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		top     []ws.LeaderboardEntry
		source  = "redis"
		liveErr error
	)

	if h.svc != nil {
		entries, err := h.svc.Top(ctx, quizID, limit)
		if err == nil {
			top = toWSEntries(entries)
		} else {
			liveErr = err
			h.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("redis leaderboard fetch failed")
		}
	}

	if len(top) == 0 {
		if snap := h.snapshotFallback(ctx, quizID, limit); len(snap) > 0 {
			source = "snapshot"
			top = snap
		} else if liveErr != nil {
			httperrors.RespondError(w, http.StatusServiceUnavailable, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard")
			return
		}
	}
	if top == nil {
		top = []ws.LeaderboardEntry{}
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id":     quizID.String(),
		"top":         top,
		"source":      source,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, quizID uuid.UUID, limit int) []ws.LeaderboardEntry {
	if h.snapshots == nil {
		return nil
	}
	entries, err := h.snapshots.LatestSnapshot(ctx, quizID, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("snapshot fetch failed")
		return nil
	}
	return toWSEntries(entries)
}

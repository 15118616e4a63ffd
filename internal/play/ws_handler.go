package play

import (
	"errors"
	"net/http"

	"github.com/Lownheur/prjt-web/internal/identity"
	"github.com/Lownheur/prjt-web/internal/server"
	httperrors "github.com/Lownheur/prjt-web/pkg/http/errors"
)

// TokenVerifier validates the access token a WebSocket client presents.
type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

// HandleWebSocket upgrades HTTP connection to WebSocket and authenticates the player.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		code := httperrors.ErrCodeInvalidToken
		if errors.Is(err, identity.ErrExpiredToken) {
			code = httperrors.ErrCodeTokenExpired
		}
		httperrors.RespondUnauthorized(w, code, "Invalid token")
		return
	}
	playerID, err := claims.PlayerID()
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token subject")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, playerID)
}

package handlers

import (
	"net/http"

	"evcharge/backend/services/charging-service/internal/service"
	"evcharge/backend/services/charging-service/internal/ws"
)

// NewStatusHandler returns GET /api/status handler.
func NewStatusHandler(sessions *service.SessionsService, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := targetUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		writeJSON(w, http.StatusOK, sessions.Status(r.Context(), userID, clock.now()))
	}
}

// NewStatusStreamHandler upgrades GET /api/status/stream to a WebSocket fed on every tick.
func NewStatusStreamHandler(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := targetUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		hub.Serve(w, r, userID)
	}
}

package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/service"
)

// NewStartHandler handles POST /api/charging/start.
func NewStartHandler(sessions *service.SessionsService, clock Clock, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		UserID        string  `json:"userId"`
		StationID     string  `json:"stationId"`
		VehicleID     string  `json:"vehicleId"`
		Mode          string  `json:"mode"`
		TargetBattery float64 `json:"targetBattery"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		caller, ok := targetUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			userID = caller
		}
		if !canAccess(r, userID) {
			writeError(w, http.StatusForbidden, "cannot start a session for another user")
			return
		}
		req.StationID = strings.TrimSpace(req.StationID)
		if req.StationID == "" {
			writeError(w, http.StatusBadRequest, "stationId is required")
			return
		}

		session, err := sessions.Start(r.Context(), service.StartSessionInput{
			UserID:        userID,
			StationID:     req.StationID,
			VehicleID:     strings.TrimSpace(req.VehicleID),
			Mode:          models.ChargingMode(strings.ToLower(strings.TrimSpace(req.Mode))),
			TargetBattery: req.TargetBattery,
			Now:           clock.now(),
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"session": session,
		})
	}
}

// NewStopHandler handles POST /api/charging/stop.
func NewStopHandler(sessions *service.SessionsService, clock Clock, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := targetUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		result, err := sessions.Stop(r.Context(), userID, clock.now())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"session":     result.Session,
			"invoice":     result.Invoice,
			"transaction": result.Transaction,
		})
	}
}

// NewPauseHandler handles POST /api/charging/pause.
func NewPauseHandler(sessions *service.SessionsService, clock Clock, logger *zap.Logger) http.HandlerFunc {
	return transitionHandler(sessions.Pause, clock, logger)
}

// NewResumeHandler handles POST /api/charging/resume.
func NewResumeHandler(sessions *service.SessionsService, clock Clock, logger *zap.Logger) http.HandlerFunc {
	return transitionHandler(sessions.Resume, clock, logger)
}

func transitionHandler(apply func(ctx context.Context, userID string, now time.Time) (models.Session, error), clock Clock, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := targetUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		session, err := apply(r.Context(), userID, clock.now())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"session": session,
		})
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/service"
)

// NewLoginHandler handles POST /api/auth/login.
func NewLoginHandler(authService *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		VehicleID string `json:"vehicleId"`
		RFID      string `json:"rfidId"`
	}
	type response struct {
		Token     string      `json:"token"`
		TokenType string      `json:"token_type"`
		User      models.User `json:"user"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		req.VehicleID = strings.TrimSpace(req.VehicleID)
		req.RFID = strings.TrimSpace(req.RFID)
		if req.VehicleID == "" || req.RFID == "" {
			writeError(w, http.StatusBadRequest, "vehicleId and rfidId are required")
			return
		}

		token, user, err := authService.Login(r.Context(), req.VehicleID, req.RFID)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error("login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}

		writeJSON(w, http.StatusOK, response{
			Token:     token,
			TokenType: "Bearer",
			User:      user,
		})
	}
}

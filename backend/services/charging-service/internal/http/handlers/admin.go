package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/service"
)

// NewAdminOverviewHandler returns GET /api/admin/overview handler.
func NewAdminOverviewHandler(sessions *service.SessionsService, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessions.Overview(r.Context(), clock.now()))
	}
}

// NewStationStatusHandler returns PUT /api/admin/stations/{id}/status handler.
func NewStationStatusHandler(sessions *service.SessionsService, clock Clock, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		status := models.StationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if status == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}

		station, stopped, err := sessions.SetStationStatus(r.Context(), mux.Vars(r)["id"], status, strings.TrimSpace(req.Reason), clock.now())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		resp := map[string]interface{}{
			"success": true,
			"station": station,
		}
		if stopped != nil {
			resp["stoppedSession"] = stopped.Session
			resp["invoice"] = stopped.Invoice
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// NewRefundHandler returns POST /api/admin/users/{id}/refund handler.
func NewRefundHandler(wallet *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Amount    float64 `json:"amount"`
		SessionID string  `json:"sessionId"`
		Reason    string  `json:"reason"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		tx, balance, err := wallet.Refund(r.Context(), mux.Vars(r)["id"], strings.TrimSpace(req.SessionID), req.Amount, strings.TrimSpace(req.Reason))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"newBalance":  balance,
			"transaction": tx,
		})
	}
}

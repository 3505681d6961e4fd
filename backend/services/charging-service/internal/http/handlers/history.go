package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/repository"
	"evcharge/backend/services/charging-service/internal/service"
)

// SessionArchiveReader reads the long-term session archive.
type SessionArchiveReader interface {
	SessionsByUser(ctx context.Context, userID string, limit int) ([]models.Session, error)
}

// NewHistoryHandler returns GET /api/users/{id}/history handler. With ?source=archive the
// sessions come from the Postgres archive instead of the recent history store.
func NewHistoryHandler(sessions *service.SessionsService, archive SessionArchiveReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["id"]

		if r.URL.Query().Get("source") == "archive" {
			if archive == nil {
				writeError(w, http.StatusNotFound, "session archive not configured")
				return
			}
			limit := 100
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 {
					writeError(w, http.StatusBadRequest, "invalid limit")
					return
				}
				limit = n
			}
			history, err := archive.SessionsByUser(r.Context(), userID, limit)
			if err != nil {
				logger.Error("archive lookup failed", zap.String("user_id", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to fetch archived sessions")
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
			return
		}

		history, err := sessions.History(r.Context(), userID)
		if err != nil {
			logger.Error("history lookup failed", zap.String("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch history")
			return
		}
		if history == nil {
			history = []models.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
	}
}

// NewHistoryExportHandler returns GET /api/users/{id}/history/export?format=csv|json.
func NewHistoryExportHandler(sessions *service.SessionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["id"]
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "json" {
			writeError(w, http.StatusBadRequest, "format must be csv or json")
			return
		}

		history, err := sessions.History(r.Context(), userID)
		if err != nil {
			logger.Error("history lookup failed", zap.String("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch history")
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="charging-history-%s.%s"`, userID, format))
		if format == "json" {
			w.Header().Set("Content-Type", "application/json")
			err = repository.WriteHistoryJSON(w, history)
		} else {
			w.Header().Set("Content-Type", "text/csv")
			err = repository.WriteHistoryCSV(w, history)
		}
		if err != nil {
			logger.Warn("history export interrupted", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/http/middleware"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/payment"
	"evcharge/backend/services/charging-service/internal/service"
)

// Clock supplies the current time to handlers.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes an optional JSON body; an empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type errorMapping struct {
	target error
	status int
}

var errorStatuses = []errorMapping{
	{service.ErrStationNotFound, http.StatusNotFound},
	{service.ErrSessionNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrNoActiveSession, http.StatusNotFound},
	{service.ErrStationUnavailable, http.StatusConflict},
	{service.ErrSessionAlreadyActive, http.StatusConflict},
	{invoice.ErrSessionNotTerminal, http.StatusConflict},
	{service.ErrInsufficientBalance, http.StatusPaymentRequired},
	{payment.ErrPaymentFailed, http.StatusPaymentRequired},
	{payment.ErrEmailDeliveryFailed, http.StatusBadGateway},
	{service.ErrInvalidMode, http.StatusBadRequest},
	{service.ErrInvalidTarget, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrUnknownPaymentMethod, http.StatusBadRequest},
	{service.ErrInvalidStationStatus, http.StatusBadRequest},
	{invoice.ErrInvalidEmail, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{context.Canceled, http.StatusServiceUnavailable},
}

// writeServiceError maps domain errors to HTTP statuses. Messages of known errors are
// returned without their package prefix.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.target) {
			writeError(w, m.status, publicMessage(m.target))
			return
		}
	}
	logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// targetUser resolves whose data a request acts on: the caller, or for admins the
// optional ?userId= override.
func targetUser(r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return "", false
	}
	if claims.IsAdmin() {
		if id := strings.TrimSpace(r.URL.Query().Get("userId")); id != "" {
			return id, true
		}
	}
	return claims.UserID, true
}

// canAccess reports whether the caller may see userID's data.
func canAccess(r *http.Request, userID string) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	return ok && (claims.IsAdmin() || claims.UserID == userID)
}

package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/service"
)

// loadInvoice resolves the invoice of the {id} session and enforces ownership. It writes
// the error response itself and reports whether the caller may proceed.
func loadInvoice(w http.ResponseWriter, r *http.Request, sessions *service.SessionsService, clock Clock, logger *zap.Logger) (models.Invoice, bool) {
	sessionID := mux.Vars(r)["id"]
	session, err := sessions.Session(r.Context(), sessionID, clock.now())
	if err != nil {
		writeServiceError(w, logger, err)
		return models.Invoice{}, false
	}
	if !canAccess(r, session.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return models.Invoice{}, false
	}
	inv, err := sessions.Invoice(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, logger, err)
		return models.Invoice{}, false
	}
	return inv, true
}

// NewInvoiceHandler returns GET /api/sessions/{id}/invoice?format=json|html|pdf handler.
func NewInvoiceHandler(sessions *service.SessionsService, company models.Company, clock Clock, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvoice(w, r, sessions, clock, logger)
		if !ok {
			return
		}

		switch format := r.URL.Query().Get("format"); format {
		case "", "json":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"invoice": inv,
				"company": company,
			})
		case "html":
			page, err := invoice.RenderHTML(inv, company)
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(page))
		case "pdf":
			var buf bytes.Buffer
			if err := invoice.RenderPDF(&buf, inv, company); err != nil {
				writeServiceError(w, logger, err)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, inv.InvoiceNumber))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(buf.Bytes())
		default:
			writeError(w, http.StatusBadRequest, "format must be json, html or pdf")
		}
	}
}

// NewInvoiceEmailHandler returns POST /api/sessions/{id}/invoice/email handler. Without an
// explicit address the invoice goes to the account's e-mail.
func NewInvoiceEmailHandler(sessions *service.SessionsService, users *service.UserDirectory, mailer *invoice.Mailer, clock Clock, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Email string `json:"email"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		inv, ok := loadInvoice(w, r, sessions, clock, logger)
		if !ok {
			return
		}

		email := strings.TrimSpace(req.Email)
		if email == "" {
			if user, err := users.Get(inv.UserID); err == nil {
				email = user.Email
			}
		}
		if err := mailer.Send(r.Context(), inv, email); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"email":   email,
		})
	}
}

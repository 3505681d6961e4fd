package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"evcharge/backend/services/charging-service/internal/http/middleware"
)

// Routes groups handlers.
type Routes struct {
	Health http.HandlerFunc
	Login  http.HandlerFunc

	Status       http.HandlerFunc
	StatusStream http.HandlerFunc

	StartCharging  http.HandlerFunc
	StopCharging   http.HandlerFunc
	PauseCharging  http.HandlerFunc
	ResumeCharging http.HandlerFunc

	Stations http.HandlerFunc
	Station  http.HandlerFunc
	Pricing  http.HandlerFunc

	History       http.HandlerFunc
	HistoryExport http.HandlerFunc

	Wallet        http.HandlerFunc
	TopUp         http.HandlerFunc
	Transactions  http.HandlerFunc
	WalletOptions http.HandlerFunc

	Invoice      http.HandlerFunc
	InvoiceEmail http.HandlerFunc

	AdminOverview http.HandlerFunc
	StationStatus http.HandlerFunc
	Refund        http.HandlerFunc
}

// NewRouter registers endpoints. Everything under /api except login and the station list
// requires a bearer token. Each path is registered once and answers other methods with 405.
func NewRouter(routes Routes, auth func(http.Handler) http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/health", allow(http.MethodGet, routes.Health))
	r.Handle("/api/auth/login", allow(http.MethodPost, routes.Login))
	r.Handle("/api/stations", allow(http.MethodGet, routes.Stations))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)

	api.Handle("/status", allow(http.MethodGet, routes.Status))
	api.Handle("/status/stream", allow(http.MethodGet, routes.StatusStream))

	api.Handle("/charging/start", allow(http.MethodPost, routes.StartCharging))
	api.Handle("/charging/stop", allow(http.MethodPost, routes.StopCharging))
	api.Handle("/charging/pause", allow(http.MethodPost, routes.PauseCharging))
	api.Handle("/charging/resume", allow(http.MethodPost, routes.ResumeCharging))

	api.Handle("/stations/{id}", allow(http.MethodGet, routes.Station))
	api.Handle("/pricing", allow(http.MethodGet, routes.Pricing))
	api.Handle("/wallet/options", allow(http.MethodGet, routes.WalletOptions))

	api.Handle("/sessions/{id}/invoice", allow(http.MethodGet, routes.Invoice))
	api.Handle("/sessions/{id}/invoice/email", allow(http.MethodPost, routes.InvoiceEmail))

	users := api.PathPrefix("/users/{id}").Subrouter()
	users.Use(middleware.RequireSelfOrAdmin("id"))
	users.Handle("/history", allow(http.MethodGet, routes.History))
	users.Handle("/history/export", allow(http.MethodGet, routes.HistoryExport))
	users.Handle("/wallet", methodHandlers{
		http.MethodGet:  routes.Wallet,
		http.MethodPost: routes.TopUp,
	})
	users.Handle("/transactions", allow(http.MethodGet, routes.Transactions))

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.Handle("/overview", allow(http.MethodGet, routes.AdminOverview))
	admin.Handle("/stations/{id}/status", allow(http.MethodPut, routes.StationStatus))
	admin.Handle("/users/{id}/refund", allow(http.MethodPost, routes.Refund))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// methodHandlers dispatches one path by request method.
type methodHandlers map[string]http.HandlerFunc

func allow(method string, h http.HandlerFunc) methodHandlers {
	return methodHandlers{method: h}
}

func (m methodHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

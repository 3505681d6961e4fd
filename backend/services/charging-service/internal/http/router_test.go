package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"evcharge/backend/libs/idgen"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/http/handlers"
	"evcharge/backend/services/charging-service/internal/http/middleware"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/payment"
	"evcharge/backend/services/charging-service/internal/service"
	"evcharge/backend/services/charging-service/internal/ws"
)

var t0 = time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

type apiEnv struct {
	handler http.Handler
	clock   time.Time
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	env := &apiEnv{clock: t0}
	now := func() time.Time { return env.clock }
	logger := zap.NewNop()

	ids, err := idgen.New(1)
	require.NoError(t, err)
	hasher := service.NewCredentialHasher(bcrypt.MinCost)
	userHash, err := hasher.Hash("RFID123456789")
	require.NoError(t, err)
	adminHash, err := hasher.Hash("ADMIN123456789")
	require.NoError(t, err)
	otherHash, err := hasher.Hash("RFID000000002")
	require.NoError(t, err)

	users := service.NewUserDirectory([]models.User{
		{ID: "user-1", VehicleID: "MH01AB1234", RFIDHash: userHash, Email: "driver@example.com"},
		{ID: "user-2", VehicleID: "MH02CD5678", RFIDHash: otherHash},
		{ID: "admin", VehicleID: "ADMIN001", RFIDHash: adminHash, IsAdmin: true},
	})
	wallet := service.NewWalletService(payment.NewProcessor(payment.NewSimulator(0, 0, nil), now), nil, ids, logger, now)
	wallet.Open("user-1", 1250)
	wallet.Open("user-2", 500)
	wallet.Open("admin", 0)

	stations := service.NewStationState([]models.Station{
		{ID: "station-1", Name: "Mall Fast Charger", Location: "Phoenix Mall, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 22},
		{ID: "station-2", Name: "Office Charger", Location: "BKC, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 50},
	}, t0)
	sessions := service.NewSessionsService(service.SessionsConfig{Tariff: energy.DefaultTariff(8)}, service.SessionsDeps{
		Stations: stations,
		Users:    users,
		Wallet:   wallet,
		Invoices: invoice.NewGenerator(func(int) int { return 42 }),
		IDs:      ids,
	}, logger)
	tokens := service.NewTokenService("secret", time.Hour)
	auth := service.NewAuthService(users, hasher, tokens, logger)
	hub := ws.NewHub(sessions, time.Second, logger)
	mailer := invoice.NewMailer(payment.NewSimulator(0, 0, nil), logger)
	company := models.Company{Name: "EV Smart Charger Pvt. Ltd.", UPIID: "ev@upi", Currency: "INR"}
	clock := handlers.Clock(now)

	router := NewRouter(Routes{
		Health:         handlers.NewHealthHandler(nil),
		Login:          handlers.NewLoginHandler(auth, logger),
		Status:         handlers.NewStatusHandler(sessions, clock),
		StatusStream:   handlers.NewStatusStreamHandler(hub),
		StartCharging:  handlers.NewStartHandler(sessions, clock, logger),
		StopCharging:   handlers.NewStopHandler(sessions, clock, logger),
		PauseCharging:  handlers.NewPauseHandler(sessions, clock, logger),
		ResumeCharging: handlers.NewResumeHandler(sessions, clock, logger),
		Stations:       handlers.NewStationsHandler(sessions),
		Station:        handlers.NewStationHandler(sessions, logger),
		Pricing:        handlers.NewPricingHandler(sessions, clock),
		History:        handlers.NewHistoryHandler(sessions, nil, logger),
		HistoryExport:  handlers.NewHistoryExportHandler(sessions, logger),
		Wallet:         handlers.NewWalletHandler(wallet, logger),
		TopUp:          handlers.NewTopUpHandler(wallet, logger),
		Transactions:   handlers.NewTransactionsHandler(wallet, logger),
		WalletOptions:  handlers.NewWalletOptionsHandler(),
		Invoice:        handlers.NewInvoiceHandler(sessions, company, clock, logger),
		InvoiceEmail:   handlers.NewInvoiceEmailHandler(sessions, users, mailer, clock, logger),
		AdminOverview:  handlers.NewAdminOverviewHandler(sessions, clock),
		StationStatus:  handlers.NewStationStatusHandler(sessions, clock, logger),
		Refund:         handlers.NewRefundHandler(wallet, logger),
	}, middleware.AuthMiddleware(tokens))
	env.handler = NewHandler(router, nil, logger)
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) login(t *testing.T, vehicleID, rfid string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"vehicleId": vehicleID, "rfidId": rfid})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Bearer", resp.TokenType)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChargingFlow(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "MH01AB1234", "RFID123456789")

	rec := env.do(t, http.MethodPost, "/api/charging/start", token, map[string]interface{}{
		"stationId": "station-1",
		"mode":      "normal",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decode(t, rec)
	assert.Equal(t, true, started["success"])
	sessionID := started["session"].(map[string]interface{})["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/charging/start", token, map[string]interface{}{"stationId": "station-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.clock = t0.Add(30 * time.Minute)
	rec = env.do(t, http.MethodGet, "/api/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, true, status["charging"])
	assert.Equal(t, 30.0, status["elapsed_min"])
	assert.Equal(t, 1800.0, status["elapsed_seconds"])
	assert.Equal(t, 66.0, status["estimated_cost"])
	assert.InDelta(t, 8.25, status["energyConsumed"], 1e-9)
	assert.InDelta(t, 61.5, status["batteryLevel"], 1e-9)

	rec = env.do(t, http.MethodPost, "/api/charging/stop", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stopped := decode(t, rec)
	inv := stopped["invoice"].(map[string]interface{})
	assert.Equal(t, 66.0, inv["subtotal"])
	assert.Equal(t, 11.88, inv["tax"])
	assert.Equal(t, 77.88, inv["total"])
	assert.Equal(t, "completed", stopped["session"].(map[string]interface{})["status"])

	rec = env.do(t, http.MethodPost, "/api/charging/stop", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users/user-1/wallet", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1184.0, decode(t, rec)["balance"])

	rec = env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/invoice?format=html", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "77.88")

	rec = env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/invoice?format=pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/invoice/email", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "driver@example.com", decode(t, rec)["email"])

	rec = env.do(t, http.MethodGet, "/api/users/user-1/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["history"], 1)

	rec = env.do(t, http.MethodGet, "/api/users/user-1/history/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "charging-history-user-1.csv")
	assert.Contains(t, rec.Body.String(), sessionID)
}

func TestPauseResumeEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "MH01AB1234", "RFID123456789")

	rec := env.do(t, http.MethodPost, "/api/charging/pause", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/charging/start", token, map[string]interface{}{"stationId": "station-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/charging/pause", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", decode(t, rec)["session"].(map[string]interface{})["status"])

	rec = env.do(t, http.MethodPost, "/api/charging/resume", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", decode(t, rec)["session"].(map[string]interface{})["status"])
}

func TestStartValidationErrors(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "MH01AB1234", "RFID123456789")

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing station", map[string]interface{}{}, http.StatusBadRequest},
		{"unknown station", map[string]interface{}{"stationId": "nope"}, http.StatusNotFound},
		{"bad mode", map[string]interface{}{"stationId": "station-1", "mode": "turbo"}, http.StatusBadRequest},
		{"other user", map[string]interface{}{"stationId": "station-1", "userId": "user-2"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/charging/start", token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthBoundaries(t *testing.T) {
	env := newAPIEnv(t)
	user := env.login(t, "MH01AB1234", "RFID123456789")
	other := env.login(t, "MH02CD5678", "RFID000000002")
	admin := env.login(t, "ADMIN001", "ADMIN123456789")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"vehicleId": "MH01AB1234", "rfidId": "WRONG"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/stations", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/status", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/pricing", "", nil).Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/users/user-1/wallet", other, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/user-1/wallet", admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/overview", user, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/overview", admin, nil).Code)

	rec = env.do(t, http.MethodDelete, "/api/charging/start", user, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	assert.Equal(t, "method not allowed", decode(t, rec)["error"])

	rec = env.do(t, http.MethodDelete, "/api/users/user-1/wallet", user, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/api/admin/users/user-1/refund", admin, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/api/auth/login", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodPost, "/health", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/nothing-here", user, nil).Code)
}

func TestInvoiceAccess(t *testing.T) {
	env := newAPIEnv(t)
	user := env.login(t, "MH01AB1234", "RFID123456789")
	other := env.login(t, "MH02CD5678", "RFID000000002")

	rec := env.do(t, http.MethodPost, "/api/charging/start", user, map[string]interface{}{"stationId": "station-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := decode(t, rec)["session"].(map[string]interface{})["id"].(string)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/invoice", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/invoice", other, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/missing/invoice", user, nil).Code)
}

func TestWalletEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "MH01AB1234", "RFID123456789")
	admin := env.login(t, "ADMIN001", "ADMIN123456789")

	rec := env.do(t, http.MethodPost, "/api/users/user-1/wallet", token, map[string]interface{}{"amount": 1000, "paymentMethod": "card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	topUp := decode(t, rec)
	assert.Equal(t, 2305.0, topUp["newBalance"])
	assert.Len(t, topUp["transactions"], 2)

	rec = env.do(t, http.MethodPost, "/api/users/user-1/wallet", token, map[string]interface{}{"amount": 20})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/users/user-1/refund", admin, map[string]interface{}{"amount": 10, "reason": "goodwill"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2315.0, decode(t, rec)["newBalance"])

	rec = env.do(t, http.MethodGet, "/api/users/user-1/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["transactions"], 3)

	rec = env.do(t, http.MethodGet, "/api/wallet/options", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["topUpOptions"], 5)
}

func TestAdminStationStatus(t *testing.T) {
	env := newAPIEnv(t)
	user := env.login(t, "MH01AB1234", "RFID123456789")
	admin := env.login(t, "ADMIN001", "ADMIN123456789")

	rec := env.do(t, http.MethodPost, "/api/charging/start", user, map[string]interface{}{"stationId": "station-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/stations/station-1/status", admin, map[string]string{"status": "maintenance"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.clock = t0.Add(10 * time.Minute)
	rec = env.do(t, http.MethodPut, "/api/admin/stations/station-1/status", admin, map[string]string{"status": "fault", "reason": "overheat"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "fault", resp["station"].(map[string]interface{})["status"])
	assert.Equal(t, "stopped", resp["stoppedSession"].(map[string]interface{})["status"])

	rec = env.do(t, http.MethodPut, "/api/admin/stations/station-1/status", admin, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricingEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "MH01AB1234", "RFID123456789")

	env.clock = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	rec := env.do(t, http.MethodGet, "/api/pricing", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pricing := decode(t, rec)
	assert.Equal(t, 8.0, pricing["base_rate"])
	assert.Equal(t, 9.6, pricing["current_rate"])
	assert.Equal(t, "peak", pricing["period"])
}

func TestMiddlewareChainSetsRequestID(t *testing.T) {
	env := newAPIEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stations", strings.NewReader(""))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

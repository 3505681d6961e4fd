package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"evcharge/backend/services/charging-service/internal/config"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/models"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Simulation.PaymentFailureRate = 0
	cfg.Simulation.PaymentDelay = 0
	cfg.Simulation.EmailFailureRate = 0
	cfg.Simulation.EmailDelay = 0
	return cfg
}

func TestNewWiresDemoAccounts(t *testing.T) {
	a, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	body, err := json.Marshal(map[string]string{"vehicleId": "MH01AB1234", "rfidId": "RFID123456789"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "user-1", login.User.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/users/user-1/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet struct {
		Balance float64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wallet))
	assert.Equal(t, 1250.0, wallet.Balance)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stations struct {
		Stations []models.Station `json:"stations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stations))
	assert.Len(t, stations.Stations, len(testConfig().Stations))
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Port = "127.0.0.1:0"
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestSimulateReferenceSession(t *testing.T) {
	result, err := Simulate(context.Background(), SimulationInput{
		StationPowerKW: 22,
		Mode:           models.ChargingModeNormal,
		BatteryStart:   45,
		TargetBattery:  80,
		Duration:       30 * time.Minute,
		Start:          time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC),
		Tariff:         energy.DefaultTariff(8),
	}, zap.NewNop())
	require.NoError(t, err)

	assert.InDelta(t, 8.25, result.Session.EnergyConsumedKWh, 1e-9)
	require.NotNil(t, result.Session.BatteryEnd)
	assert.InDelta(t, 61.5, *result.Session.BatteryEnd, 1e-9)
	assert.Equal(t, 66.0, result.Invoice.Subtotal)
	assert.Equal(t, 11.88, result.Invoice.Tax)
	assert.Equal(t, 77.88, result.Invoice.Total)
	assert.Equal(t, 9934.0, result.Balance)
}

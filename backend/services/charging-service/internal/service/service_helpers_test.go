package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evcharge/backend/libs/idgen"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/repository"
)

var t0 = time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

type stubPayments struct {
	err   error
	calls int
}

func (p *stubPayments) Collect(_ context.Context, _ float64, _ string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "REF1", nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) StationChanged(ctx context.Context, station models.Station, session *models.Session) {
	m.Called(ctx, station, session)
}

func (m *mockNotifier) SessionCompleted(ctx context.Context, session models.Session, inv models.Invoice) {
	m.Called(ctx, session, inv)
}

type testEnv struct {
	sessions *SessionsService
	wallet   *WalletService
	stations *StationState
	users    *UserDirectory
	history  *repository.MemoryHistory
	payments *stubPayments
}

func testStations() []models.Station {
	return []models.Station{
		{ID: "station-1", Name: "Mall Fast Charger", Location: "Phoenix Mall, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 22, ConnectorType: "CCS"},
		{ID: "station-2", Name: "Office Charger", Location: "BKC, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 50, ConnectorType: "CHAdeMO"},
		{ID: "station-3", Name: "Airport Charger", Location: "T2, Mumbai", Status: models.StationStatusMaintenance, PowerOutputKW: 22, ConnectorType: "Type2"},
	}
}

type envOption func(*SessionsConfig, *SessionsDeps)

func withNotifier(n Notifier) envOption {
	return func(_ *SessionsConfig, d *SessionsDeps) { d.Notifier = n }
}

func withConcurrentStations() envOption {
	return func(c *SessionsConfig, _ *SessionsDeps) { c.AllowConcurrentStations = true }
}

func newTestEnv(t *testing.T, logger *zap.Logger, opts ...envOption) *testEnv {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	ids, err := idgen.New(1)
	require.NoError(t, err)

	users := NewUserDirectory([]models.User{
		{ID: "user-1", VehicleID: "MH01AB1234", Name: "Demo Driver"},
		{ID: "user-2", VehicleID: "MH02CD5678", Name: "Low Balance"},
		{ID: "user-3", VehicleID: "MH03EF9012", Name: "Second Driver"},
	})
	payments := &stubPayments{}
	wallet := NewWalletService(payments, nil, ids, logger, func() time.Time { return t0 })
	wallet.Open("user-1", 1250)
	wallet.Open("user-2", 10)
	wallet.Open("user-3", 1000)

	stations := NewStationState(testStations(), t0)
	history := repository.NewMemoryHistory(0)
	cfg := SessionsConfig{Tariff: energy.DefaultTariff(8)}
	deps := SessionsDeps{
		Stations: stations,
		Users:    users,
		Wallet:   wallet,
		History:  history,
		Invoices: invoice.NewGenerator(func(int) int { return 42 }),
		IDs:      ids,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	return &testEnv{
		sessions: NewSessionsService(cfg, deps, logger),
		wallet:   wallet,
		stations: stations,
		users:    users,
		history:  history,
		payments: payments,
	}
}

func (e *testEnv) start(t *testing.T, userID, stationID string, now time.Time) models.Session {
	t.Helper()
	session, err := e.sessions.Start(context.Background(), StartSessionInput{
		UserID:    userID,
		StationID: stationID,
		Mode:      models.ChargingModeNormal,
		Now:       now,
	})
	require.NoError(t, err)
	return session
}

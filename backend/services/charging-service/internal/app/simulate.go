package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"evcharge/backend/libs/idgen"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/payment"
	"evcharge/backend/services/charging-service/internal/service"
)

// SimulationInput describes one offline charge-up.
type SimulationInput struct {
	StationPowerKW float64
	Mode           models.ChargingMode
	BatteryStart   float64
	TargetBattery  float64
	Duration       time.Duration
	Start          time.Time
	Tariff         energy.Tariff
	Balance        float64
}

// SimulationResult is the stopped session, its invoice and the wallet balance afterwards.
type SimulationResult struct {
	Session models.Session `json:"session"`
	Invoice models.Invoice `json:"invoice"`
	Balance float64        `json:"balance"`
}

// Simulate runs a session through the real lifecycle (start, recompute, stop, invoice)
// against an in-memory fleet of one station.
func Simulate(ctx context.Context, in SimulationInput, logger *zap.Logger) (*SimulationResult, error) {
	ids, err := idgen.New(0)
	if err != nil {
		return nil, err
	}
	if in.Balance <= 0 {
		in.Balance = service.MaxTopUp
	}
	if in.Tariff.BaseRate <= 0 {
		in.Tariff = energy.DefaultTariff(8)
	}

	users := service.NewUserDirectory([]models.User{{
		ID:           "simulated",
		VehicleID:    "SIM0001",
		BatteryLevel: in.BatteryStart,
	}})
	wallet := service.NewWalletService(payment.NewProcessor(payment.NewSimulator(0, 0, nil), nil), nil, ids, logger, func() time.Time {
		return in.Start.Add(in.Duration)
	})
	wallet.Open("simulated", in.Balance)

	stations := service.NewStationState([]models.Station{{
		ID:            "sim-station",
		Name:          "Simulated Charger",
		Location:      "Offline",
		Status:        models.StationStatusIdle,
		PowerOutputKW: in.StationPowerKW,
	}}, in.Start)
	sessions := service.NewSessionsService(service.SessionsConfig{Tariff: in.Tariff}, service.SessionsDeps{
		Stations: stations,
		Users:    users,
		Wallet:   wallet,
		Invoices: invoice.NewGenerator(nil),
		IDs:      ids,
	}, logger)

	if _, err := sessions.Start(ctx, service.StartSessionInput{
		UserID:        "simulated",
		StationID:     "sim-station",
		Mode:          in.Mode,
		TargetBattery: in.TargetBattery,
		Now:           in.Start,
	}); err != nil {
		return nil, err
	}
	result, err := sessions.Stop(ctx, "simulated", in.Start.Add(in.Duration))
	if err != nil {
		return nil, err
	}
	balance, err := wallet.Balance(ctx, "simulated")
	if err != nil {
		return nil, err
	}
	return &SimulationResult{Session: result.Session, Invoice: result.Invoice, Balance: balance}, nil
}

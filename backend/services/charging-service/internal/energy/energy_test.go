package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"evcharge/backend/services/charging-service/internal/models"
)

func TestModePower(t *testing.T) {
	assert.Equal(t, 22.0, ModePower(22, models.ChargingModeFast))
	assert.Equal(t, 16.5, ModePower(22, models.ChargingModeNormal))
	assert.Equal(t, 11.0, ModePower(22, models.ChargingModeEco))
	assert.Equal(t, 16.5, ModePower(22, models.ChargingMode("turbo")))
	assert.Zero(t, ModePower(0, models.ChargingModeFast))
}

func TestEnergyConsumedIsMonotonic(t *testing.T) {
	assert.Zero(t, EnergyConsumed(0, 16.5))
	assert.Zero(t, EnergyConsumed(-10, 16.5))

	prev := 0.0
	for elapsed := 0.0; elapsed <= 4*3600; elapsed += 137 {
		e := EnergyConsumed(elapsed, 16.5)
		assert.GreaterOrEqual(t, e, prev, "elapsed=%v", elapsed)
		prev = e
	}
}

func TestBatteryLevelIsClamped(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		energy   float64
		capacity float64
		want     float64
	}{
		{"no energy", 45, 0, 50, 45},
		{"half hour normal", 45, 8.25, 50, 61.5},
		{"overflow clamps", 90, 40, 50, 100},
		{"zero capacity", 30, 10, 0, 30},
		{"negative energy ignored", 30, -5, 50, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BatteryLevel(tt.start, tt.energy, tt.capacity)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, tt.start)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestEstimatedTimeRemaining(t *testing.T) {
	// 35% of 50 kWh at 16.5 kW = 1.0606 h
	assert.Equal(t, int64(3819), EstimatedTimeRemaining(45, 80, 16.5, 50))
	assert.Zero(t, EstimatedTimeRemaining(80, 80, 16.5, 50))
	assert.Zero(t, EstimatedTimeRemaining(95, 80, 16.5, 50))
	assert.Zero(t, EstimatedTimeRemaining(10, 80, 0, 50))
}

func TestCostHelpers(t *testing.T) {
	assert.Equal(t, 66.0, TotalCost(8.25, 8))
	assert.InDelta(t, 17.5*9.6, EstimatedCost(45, 80, 50, 9.6), 1e-9)
	assert.Zero(t, EstimatedCost(80, 80, 50, 9.6))
	assert.InDelta(t, 16.5, ChargingRate(8.25, 1800), 1e-9)
	assert.Zero(t, ChargingRate(1, 0))
	assert.InDelta(t, 6.765, CO2SavedKg(8.25), 1e-9)
	assert.InDelta(t, 28.875, FuelSavedLitres(8.25), 1e-9)
}

func TestScenarioHalfHourNormalMode(t *testing.T) {
	power := ModePower(22, models.ChargingModeNormal)
	kwh := EnergyConsumed(1800, power)
	assert.InDelta(t, 8.25, kwh, 1e-9)
	assert.InDelta(t, 61.5, BatteryLevel(45, kwh, 50), 1e-9)
	assert.Equal(t, 66.0, Round2(TotalCost(kwh, 8.00)))
}

func TestMoneyRounding(t *testing.T) {
	assert.Equal(t, 11.88, Mul2(66, 0.18))
	assert.Equal(t, 77.88, Sum2(66, 11.88))
	assert.Equal(t, 0.3, Sum2(0.1, 0.2))
	assert.Equal(t, 2.35, Round2(2.345))
	assert.Equal(t, -2.35, Round2(-2.345))
}

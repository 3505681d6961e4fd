// Package energy holds the side-effect free charging model: energy delivered over time,
// battery state, time to target, and the dynamic tariff. Callers pass timestamps and hours
// explicitly; nothing in here reads the wall clock.
package energy

import (
	"math"

	"evcharge/backend/services/charging-service/internal/models"
)

const secondsPerHour = 3600.0

// Environmental equivalence factors shown on the dashboard.
const (
	CO2KgPerKWh      = 0.82
	FuelLitresPerKWh = 3.5
)

// ModePower returns the average power delivered in the given mode as a fraction of the
// station's rated output. Unknown modes charge at the normal rate.
func ModePower(ratedKW float64, mode models.ChargingMode) float64 {
	if ratedKW <= 0 {
		return 0
	}
	switch mode {
	case models.ChargingModeFast:
		return ratedKW
	case models.ChargingModeEco:
		return ratedKW * 0.5
	default:
		return ratedKW * 0.75
	}
}

// EnergyConsumed returns kWh delivered after elapsedSeconds at a constant average power.
func EnergyConsumed(elapsedSeconds, averagePowerKW float64) float64 {
	if elapsedSeconds <= 0 || averagePowerKW <= 0 {
		return 0
	}
	return elapsedSeconds / secondsPerHour * averagePowerKW
}

// BatteryLevel returns the state of charge after energyKWh was added, clamped to 100 and
// never below startPercent.
func BatteryLevel(startPercent, energyKWh, capacityKWh float64) float64 {
	if capacityKWh <= 0 || energyKWh <= 0 {
		return startPercent
	}
	level := startPercent + energyKWh/capacityKWh*100
	if level > 100 {
		level = 100
	}
	if level < startPercent {
		return startPercent
	}
	return level
}

// EstimatedTimeRemaining returns whole seconds needed to reach targetPercent, or 0 when the
// target is already met.
func EstimatedTimeRemaining(currentPercent, targetPercent, powerKW, capacityKWh float64) int64 {
	if currentPercent >= targetPercent || powerKW <= 0 || capacityKWh <= 0 {
		return 0
	}
	hours := (targetPercent - currentPercent) / 100 * capacityKWh / powerKW
	return int64(math.Ceil(hours * secondsPerHour))
}

// EnergyToTarget returns kWh needed to move from currentPercent to targetPercent.
func EnergyToTarget(currentPercent, targetPercent, capacityKWh float64) float64 {
	if currentPercent >= targetPercent || capacityKWh <= 0 {
		return 0
	}
	return (targetPercent - currentPercent) / 100 * capacityKWh
}

// TotalCost is the unrounded price of energyKWh at ratePerKWh.
func TotalCost(energyKWh, ratePerKWh float64) float64 {
	return energyKWh * ratePerKWh
}

// EstimatedCost prices the energy needed to reach the target battery level.
func EstimatedCost(currentPercent, targetPercent, capacityKWh, ratePerKWh float64) float64 {
	return TotalCost(EnergyToTarget(currentPercent, targetPercent, capacityKWh), ratePerKWh)
}

// ChargingRate returns the observed kWh per hour of a session.
func ChargingRate(energyKWh, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return energyKWh / (durationSeconds / secondsPerHour)
}

// CO2SavedKg estimates tailpipe CO2 avoided for the delivered energy.
func CO2SavedKg(energyKWh float64) float64 {
	return energyKWh * CO2KgPerKWh
}

// FuelSavedLitres estimates petrol avoided for the delivered energy.
func FuelSavedLitres(energyKWh float64) float64 {
	return energyKWh * FuelLitresPerKWh
}

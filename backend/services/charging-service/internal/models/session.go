package models

import "time"

// SessionStatus is the lifecycle state of a charging session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusStopped   SessionStatus = "stopped"
)

// Terminal reports whether the status is final (completed or stopped).
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusStopped
}

// Live reports whether the session still occupies its station.
func (s SessionStatus) Live() bool {
	return s == SessionStatusActive || s == SessionStatusPaused
}

// ChargingMode selects the fraction of rated station power delivered.
type ChargingMode string

const (
	ChargingModeFast   ChargingMode = "fast"
	ChargingModeNormal ChargingMode = "normal"
	ChargingModeEco    ChargingMode = "eco"
)

// Valid reports whether m is a known mode.
func (m ChargingMode) Valid() bool {
	switch m {
	case ChargingModeFast, ChargingModeNormal, ChargingModeEco:
		return true
	}
	return false
}

// Session represents one charge-up of one vehicle at one station.
type Session struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"userId"`
	VehicleID          string        `json:"vehicleId"`
	StationID          string        `json:"stationId"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            *time.Time    `json:"endTime,omitempty"`
	EnergyConsumedKWh  float64       `json:"energyConsumed"`
	CostPerKWh         float64       `json:"costPerKwh"`
	TotalCost          float64       `json:"totalCost"`
	BatteryStart       float64       `json:"batteryStart"`
	BatteryEnd         *float64      `json:"batteryEnd,omitempty"`
	Status             SessionStatus `json:"status"`
	Mode               ChargingMode  `json:"chargingMode"`
	TargetBattery      float64       `json:"targetBattery"`
	PowerKW            float64       `json:"powerKw"`
	BatteryCapacityKWh float64       `json:"batteryCapacityKwh"`
	PausedAt           *time.Time    `json:"pausedAt,omitempty"`
	PausedSeconds      float64       `json:"pausedSeconds"`
	StopReason         string        `json:"stopReason,omitempty"`
}

// DurationSeconds returns wall-clock seconds between start and end (or now for live sessions).
func (s Session) DurationSeconds(now time.Time) float64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	d := end.Sub(s.StartTime).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

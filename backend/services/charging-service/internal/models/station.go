package models

import "time"

// StationStatus is the operational state of a charge point.
type StationStatus string

const (
	StationStatusIdle        StationStatus = "idle"
	StationStatusCharging    StationStatus = "charging"
	StationStatusFault       StationStatus = "fault"
	StationStatusMaintenance StationStatus = "maintenance"
	StationStatusOffline     StationStatus = "offline"
)

// Valid reports whether s is a known station status.
func (s StationStatus) Valid() bool {
	switch s {
	case StationStatusIdle, StationStatusCharging, StationStatusFault, StationStatusMaintenance, StationStatusOffline:
		return true
	}
	return false
}

// Station is a physical charge point.
type Station struct {
	ID                      string        `json:"id" yaml:"id"`
	Name                    string        `json:"name" yaml:"name"`
	Location                string        `json:"location" yaml:"location"`
	Status                  StationStatus `json:"status" yaml:"status"`
	PowerOutputKW           float64       `json:"powerOutput" yaml:"powerOutputKw"`
	MaxPowerOutputKW        float64       `json:"maxPowerOutput" yaml:"maxPowerOutputKw"`
	TotalEnergyDispensedKWh float64       `json:"totalEnergyDispensed" yaml:"totalEnergyDispensedKwh"`
	TotalRevenue            float64       `json:"totalRevenue" yaml:"totalRevenue"`
	LastMaintenance         time.Time     `json:"lastMaintenance" yaml:"lastMaintenance"`
	NextMaintenance         time.Time     `json:"nextMaintenance" yaml:"nextMaintenance"`
	Efficiency              float64       `json:"efficiency" yaml:"efficiency"`
	ConnectorType           string        `json:"connectorType" yaml:"connectorType"`
	CurrentSessionID        string        `json:"currentSession,omitempty" yaml:"-"`
	SessionsCount           int           `json:"sessionsCount" yaml:"-"`
	ChargingSeconds         float64       `json:"chargingSeconds" yaml:"-"`
}

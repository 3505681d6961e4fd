package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/models"
)

// StationOverview is one fleet row of the admin dashboard.
type StationOverview struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Location         string               `json:"location"`
	Status           models.StationStatus `json:"status"`
	Revenue          float64              `json:"revenue"`
	EnergyKWh        float64              `json:"energyDispensed"`
	Sessions         int                  `json:"sessions"`
	Utilization      float64              `json:"utilization"`
	CurrentSessionID string               `json:"currentSession,omitempty"`
	NextMaintenance  time.Time            `json:"nextMaintenance"`
}

// AdminOverview aggregates the fleet.
type AdminOverview struct {
	TotalRevenue            float64           `json:"totalRevenue"`
	TotalEnergyKWh          float64           `json:"totalEnergy"`
	TotalSessions           int               `json:"totalSessions"`
	ActiveSessions          int               `json:"activeSessions"`
	AverageSessionValue     float64           `json:"averageSessionValue"`
	AverageEnergyPerSession float64           `json:"averageEnergyPerSession"`
	StationsByStatus        map[string]int    `json:"stationsByStatus"`
	Stations                []StationOverview `json:"stations"`
	GeneratedAt             time.Time         `json:"generatedAt"`
}

// Overview computes fleet totals and per-station utilization as of now.
func (s *SessionsService) Overview(_ context.Context, now time.Time) AdminOverview {
	out := AdminOverview{
		StationsByStatus: make(map[string]int),
		GeneratedAt:      now,
	}
	uptime := now.Sub(s.deps.Stations.StartedAt()).Seconds()

	var revenues []float64
	for _, slot := range s.deps.Stations.Snapshot() {
		st := slot.Station
		charging := st.ChargingSeconds
		if slot.Session != nil {
			out.ActiveSessions++
			charging += slot.Session.DurationSeconds(now)
		}
		row := StationOverview{
			ID:               st.ID,
			Name:             st.Name,
			Location:         st.Location,
			Status:           st.Status,
			Revenue:          st.TotalRevenue,
			EnergyKWh:        energy.Round2(st.TotalEnergyDispensedKWh),
			Sessions:         st.SessionsCount,
			Utilization:      utilization(charging, uptime),
			CurrentSessionID: st.CurrentSessionID,
			NextMaintenance:  st.NextMaintenance,
		}
		out.Stations = append(out.Stations, row)
		out.StationsByStatus[string(st.Status)]++
		revenues = append(revenues, st.TotalRevenue)
		out.TotalEnergyKWh += st.TotalEnergyDispensedKWh
		out.TotalSessions += st.SessionsCount
	}
	out.TotalRevenue = energy.Sum2(revenues...)
	out.TotalEnergyKWh = energy.Round2(out.TotalEnergyKWh)
	if out.TotalSessions > 0 {
		out.AverageSessionValue = energy.Round2(out.TotalRevenue / float64(out.TotalSessions))
		out.AverageEnergyPerSession = energy.Round2(out.TotalEnergyKWh / float64(out.TotalSessions))
	}
	return out
}

func utilization(chargingSeconds, uptimeSeconds float64) float64 {
	if uptimeSeconds <= 0 {
		return 0
	}
	u := chargingSeconds / uptimeSeconds * 100
	if u > 100 {
		u = 100
	}
	return energy.Round2(u)
}

// SetStationStatus changes an operator-controlled station status. Moving a busy station to
// fault or offline force-stops its session; other changes of a busy station are rejected.
func (s *SessionsService) SetStationStatus(ctx context.Context, stationID string, status models.StationStatus, reason string, now time.Time) (models.Station, *StopResult, error) {
	if !status.Valid() || status == models.StationStatusCharging {
		return models.Station{}, nil, fmt.Errorf("%w: %q", ErrInvalidStationStatus, status)
	}
	slot, ok := s.deps.Stations.View(stationID)
	if !ok {
		return models.Station{}, nil, ErrStationNotFound
	}

	if slot.Session != nil {
		if status != models.StationStatusFault && status != models.StationStatusOffline {
			return models.Station{}, nil, fmt.Errorf("%w: %s has a live session", ErrStationUnavailable, stationID)
		}
		if reason == "" {
			reason = "station " + string(status)
		}
		stopped, err := s.finish(ctx, stationID, slot.Session.ID, now, models.SessionStatusStopped, reason, status)
		if err != nil {
			return models.Station{}, nil, err
		}
		station, err := s.Station(stationID)
		if err != nil {
			return models.Station{}, nil, err
		}
		s.logger.Warn("station status changed with live session",
			zap.String("station_id", stationID),
			zap.String("status", string(status)),
			zap.String("session_id", stopped.Session.ID),
		)
		return station, stopped, nil
	}

	var station models.Station
	err := s.deps.Stations.Update(stationID, func(cur *Slot) error {
		if cur.Session != nil {
			return fmt.Errorf("%w: %s has a live session", ErrStationUnavailable, stationID)
		}
		cur.Station.Status = status
		if status == models.StationStatusMaintenance {
			cur.Station.LastMaintenance = now
		}
		station = cur.Station
		return nil
	})
	if err != nil {
		return models.Station{}, nil, err
	}
	s.logger.Info("station status changed", zap.String("station_id", stationID), zap.String("status", string(status)))
	s.notifyStation(ctx, station, nil)
	return station, nil, nil
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/service"
)

// NewStationsHandler returns GET /api/stations handler.
func NewStationsHandler(sessions *service.SessionsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stations": sessions.Stations(),
		})
	}
}

// NewStationHandler returns GET /api/stations/{id} handler.
func NewStationHandler(sessions *service.SessionsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		station, err := sessions.Station(mux.Vars(r)["id"])
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"station": station,
		})
	}
}

// NewPricingHandler returns GET /api/pricing handler.
func NewPricingHandler(sessions *service.SessionsService, clock Clock) http.HandlerFunc {
	type response struct {
		BaseRate       float64         `json:"base_rate"`
		CurrentRate    float64         `json:"current_rate"`
		Hour           int             `json:"hour"`
		Load           float64         `json:"load"`
		Period         energy.Period   `json:"period"`
		PeakWindows    []energy.Window `json:"peak_windows"`
		OffPeakWindows []energy.Window `json:"off_peak_windows"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tariff := sessions.Tariff()
		rate, hour, load := sessions.CurrentRate(clock.now())
		writeJSON(w, http.StatusOK, response{
			BaseRate:       tariff.BaseRate,
			CurrentRate:    rate,
			Hour:           hour,
			Load:           energy.Round2(load),
			Period:         tariff.PeriodAt(hour),
			PeakWindows:    tariff.PeakWindows,
			OffPeakWindows: tariff.OffPeakWindows,
		})
	}
}

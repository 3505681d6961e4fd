package repository

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"evcharge/backend/services/charging-service/internal/models"
)

var csvHeader = []string{
	"Session ID", "Date", "Station", "Vehicle", "Mode", "Duration (min)",
	"Energy (kWh)", "Rate (per kWh)", "Total Cost", "Battery Start (%)", "Battery End (%)", "Status",
}

// WriteHistoryCSV writes sessions as a CSV document with a header row.
func WriteHistoryCSV(w io.Writer, sessions []models.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range sessions {
		end := s.StartTime
		if s.EndTime != nil {
			end = *s.EndTime
		}
		batteryEnd := ""
		if s.BatteryEnd != nil {
			batteryEnd = strconv.FormatFloat(*s.BatteryEnd, 'f', 1, 64)
		}
		record := []string{
			s.ID,
			s.StartTime.Format(time.RFC3339),
			s.StationID,
			s.VehicleID,
			string(s.Mode),
			fmt.Sprintf("%.0f", s.DurationSeconds(end)/60),
			fmt.Sprintf("%.2f", s.EnergyConsumedKWh),
			fmt.Sprintf("%.2f", s.CostPerKWh),
			fmt.Sprintf("%.2f", s.TotalCost),
			strconv.FormatFloat(s.BatteryStart, 'f', 1, 64),
			batteryEnd,
			string(s.Status),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistoryJSON writes sessions as an indented JSON array.
func WriteHistoryJSON(w io.Writer, sessions []models.Session) error {
	if sessions == nil {
		sessions = []models.Session{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sessions)
}

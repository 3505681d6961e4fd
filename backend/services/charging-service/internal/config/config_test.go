package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcharge/backend/services/charging-service/internal/models"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, 5*time.Second, cfg.TickInterval())
	assert.Equal(t, time.Hour, cfg.JWTExpiration())
	assert.Equal(t, 8.0, cfg.Tariff().BaseRate)
	assert.NotEmpty(t, cfg.Tariff().PeakWindows)
	assert.Len(t, cfg.Users, 2)
	assert.Equal(t, "MH01AB1234", cfg.Users[0].VehicleID)
	assert.Equal(t, 1250.0, cfg.Users[0].InitialBalance)
	assert.True(t, cfg.Users[1].IsAdmin)
	assert.Equal(t, "EV Smart Charger Pvt. Ltd.", cfg.Company.Name)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{
		"CHARGING_HTTP_PORT":              ":9090",
		"CHARGING_BASE_RATE":              "10.5",
		"CHARGING_TICK_INTERVAL":          "2s",
		"CHARGING_CORS_ORIGINS":           "http://a.test, http://b.test",
		"CHARGING_REDIS_ADDR":             "localhost:6379",
		"CHARGING_COMPANY_NAME":           "Acme Charging",
		"CHARGING_PAYMENT_FAILURE_RATE":   "0",
		"CHARGING_JWT_EXPIRATION_MINUTES": "15",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, 10.5, cfg.Tariff().BaseRate)
	assert.Equal(t, 2*time.Second, cfg.TickInterval())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "Acme Charging", cfg.Company.Name)
	assert.Zero(t, cfg.Simulation.PaymentFailureRate)
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiration())
}

func TestFileReplacesFleet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
charging:
  timezone: UTC
  peakWindows:
    - startHour: 17
      endHour: 21
stations:
  - id: depot-1
    name: Depot
    powerOutputKw: 11
users:
  - id: fleet-1
    vehicleId: KA05MN0001
    rfid: CARD-1
    initialBalance: 300
`), 0o600))

	cfg, err := load(path, envMap(nil))
	require.NoError(t, err)

	require.Len(t, cfg.Stations, 1)
	assert.Equal(t, "depot-1", cfg.Stations[0].ID)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "KA05MN0001", cfg.Users[0].VehicleID)
	assert.Equal(t, "CARD-1", cfg.Users[0].RFID)
	assert.Equal(t, 300.0, cfg.Users[0].InitialBalance)
	assert.Equal(t, 17, cfg.Tariff().PeakWindows[0].StartHour)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = " " }},
		{"no stations", func(c *Config) { c.Stations = nil }},
		{"duplicate station", func(c *Config) { c.Stations = append(c.Stations, c.Stations[0]) }},
		{"zero power", func(c *Config) { c.Stations[0].PowerOutputKW = 0 }},
		{"bad status", func(c *Config) { c.Stations[0].Status = models.StationStatus("broken") }},
		{"failure rate", func(c *Config) { c.Simulation.EmailFailureRate = 1.5 }},
		{"missing rfid", func(c *Config) { c.Users[0].RFID = "" }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }},
		{"bad timezone", func(c *Config) { c.Charging.Timezone = "Mars/Olympus" }},
		{"node id", func(c *Config) { c.Charging.NodeID = 2048 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	libconfig "evcharge/backend/libs/config"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/models"
)

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port            string        `yaml:"port" env:"CHARGING_HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"CHARGING_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"CHARGING_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"CHARGING_HTTP_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" env:"CHARGING_CORS_ORIGINS"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSecret            string `yaml:"jwtSecret" env:"CHARGING_JWT_SECRET"`
	JWTExpirationMinutes int    `yaml:"jwtExpirationMinutes" env:"CHARGING_JWT_EXPIRATION_MINUTES"`
	BcryptCost           int    `yaml:"bcryptCost" env:"CHARGING_BCRYPT_COST"`
}

// ChargingConfig holds tariff and session model parameters.
type ChargingConfig struct {
	BaseRate                float64         `yaml:"baseRate" env:"CHARGING_BASE_RATE"`
	PeakMultiplier          float64         `yaml:"peakMultiplier" env:"CHARGING_PEAK_MULTIPLIER"`
	OffPeakMultiplier       float64         `yaml:"offPeakMultiplier" env:"CHARGING_OFF_PEAK_MULTIPLIER"`
	LoadThreshold           float64         `yaml:"loadThreshold" env:"CHARGING_LOAD_THRESHOLD"`
	LoadMultiplier          float64         `yaml:"loadMultiplier" env:"CHARGING_LOAD_MULTIPLIER"`
	PeakWindows             []energy.Window `yaml:"peakWindows" env:"-"`
	OffPeakWindows          []energy.Window `yaml:"offPeakWindows" env:"-"`
	Timezone                string          `yaml:"timezone" env:"CHARGING_TIMEZONE"`
	TickInterval            time.Duration   `yaml:"tickInterval" env:"CHARGING_TICK_INTERVAL"`
	DefaultBattery          float64         `yaml:"defaultBattery" env:"CHARGING_DEFAULT_BATTERY"`
	DefaultTarget           float64         `yaml:"defaultTarget" env:"CHARGING_DEFAULT_TARGET"`
	BatteryCapacityKWh      float64         `yaml:"batteryCapacityKwh" env:"CHARGING_BATTERY_CAPACITY_KWH"`
	AllowConcurrentStations bool            `yaml:"allowConcurrentStations" env:"CHARGING_ALLOW_CONCURRENT_STATIONS"`
	RetainFinished          int             `yaml:"retainFinished" env:"CHARGING_RETAIN_FINISHED"`
	NodeID                  int64           `yaml:"nodeId" env:"CHARGING_NODE_ID"`
}

// SimulationConfig tunes the simulated payment gateway and mail relay.
type SimulationConfig struct {
	PaymentFailureRate float64       `yaml:"paymentFailureRate" env:"CHARGING_PAYMENT_FAILURE_RATE"`
	PaymentDelay       time.Duration `yaml:"paymentDelay" env:"CHARGING_PAYMENT_DELAY"`
	EmailFailureRate   float64       `yaml:"emailFailureRate" env:"CHARGING_EMAIL_FAILURE_RATE"`
	EmailDelay         time.Duration `yaml:"emailDelay" env:"CHARGING_EMAIL_DELAY"`
}

// RedisConfig enables the Redis history store when Addr is set.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"CHARGING_REDIS_ADDR"`
	Password     string `yaml:"password" env:"CHARGING_REDIS_PASSWORD"`
	DB           int    `yaml:"db" env:"CHARGING_REDIS_DB"`
	HistoryLimit int    `yaml:"historyLimit" env:"CHARGING_HISTORY_LIMIT"`
}

// DatabaseConfig enables the Postgres archive when DSN is set.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn" env:"CHARGING_POSTGRES_DSN"`
	MaxOpenConns int           `yaml:"maxOpenConns" env:"CHARGING_POSTGRES_MAX_OPEN_CONNS"`
	ConnLifetime time.Duration `yaml:"connLifetime" env:"CHARGING_POSTGRES_CONN_LIFETIME"`
}

// MQTTConfig configures the telemetry publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" env:"CHARGING_MQTT_ENABLED"`
	Broker      string `yaml:"broker" env:"CHARGING_MQTT_BROKER"`
	ClientID    string `yaml:"clientId" env:"CHARGING_MQTT_CLIENT_ID"`
	Username    string `yaml:"username" env:"CHARGING_MQTT_USERNAME"`
	Password    string `yaml:"password" env:"CHARGING_MQTT_PASSWORD"`
	TopicPrefix string `yaml:"topicPrefix" env:"CHARGING_MQTT_TOPIC_PREFIX"`
}

// UserConfig seeds one account. RFID is hashed at startup unless RFIDHash is given.
type UserConfig struct {
	models.User `yaml:",inline"`
	RFID        string `yaml:"rfid"`
}

// Config defines charging service configuration.
type Config struct {
	LogLevel   string           `yaml:"logLevel" env:"LOG_LEVEL"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Charging   ChargingConfig   `yaml:"charging"`
	Simulation SimulationConfig `yaml:"simulation"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Company    models.Company   `yaml:"company" env:"CHARGING_COMPANY"`
	Stations   []models.Station `yaml:"stations" env:"-"`
	Users      []UserConfig     `yaml:"users" env:"-"`
}

// Default returns the demo configuration.
func Default() *Config {
	lastMaintenance := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	nextMaintenance := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	memberSince := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Auth: AuthConfig{
			JWTSecret:            "dev-secret-change-me",
			JWTExpirationMinutes: 60,
		},
		Charging: ChargingConfig{
			BaseRate:           8.00,
			PeakMultiplier:     1.2,
			OffPeakMultiplier:  0.8,
			LoadThreshold:      0.8,
			LoadMultiplier:     1.1,
			Timezone:           "Asia/Kolkata",
			TickInterval:       5 * time.Second,
			DefaultBattery:     45,
			DefaultTarget:      80,
			BatteryCapacityKWh: 50,
			NodeID:             1,
			RetainFinished:     1000,
		},
		Simulation: SimulationConfig{
			PaymentFailureRate: 0.1,
			PaymentDelay:       2 * time.Second,
			EmailFailureRate:   0.1,
			EmailDelay:         1500 * time.Millisecond,
		},
		Redis: RedisConfig{HistoryLimit: 100},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "charging-service",
			TopicPrefix: "evcharge",
		},
		Company: models.Company{
			Name:      "EV Smart Charger Pvt. Ltd.",
			Address:   "Plot No. 123, Tech Park, Mumbai - 400001",
			Phone:     "+91 98765 43210",
			Email:     "billing@evsmartcharger.com",
			GSTNumber: "GST123456789",
			Website:   "www.evsmartcharger.com",
			UPIID:     "evsmartcharger@upi",
			Currency:  "INR",
		},
		Stations: []models.Station{
			{ID: "station-1", Name: "Phoenix Mall Fast Charger", Location: "Lower Parel, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 22, MaxPowerOutputKW: 22, Efficiency: 95, ConnectorType: "CCS", LastMaintenance: lastMaintenance, NextMaintenance: nextMaintenance},
			{ID: "station-2", Name: "BKC Business Hub", Location: "Bandra Kurla Complex, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 50, MaxPowerOutputKW: 60, Efficiency: 93, ConnectorType: "CHAdeMO", LastMaintenance: lastMaintenance, NextMaintenance: nextMaintenance},
			{ID: "station-3", Name: "Powai Lake Charger", Location: "Powai, Mumbai", Status: models.StationStatusIdle, PowerOutputKW: 7.4, MaxPowerOutputKW: 7.4, Efficiency: 97, ConnectorType: "Type2", LastMaintenance: lastMaintenance, NextMaintenance: nextMaintenance},
			{ID: "station-4", Name: "Airport T2 Supercharger", Location: "Andheri East, Mumbai", Status: models.StationStatusMaintenance, PowerOutputKW: 120, MaxPowerOutputKW: 150, Efficiency: 91, ConnectorType: "CCS", LastMaintenance: lastMaintenance, NextMaintenance: nextMaintenance},
		},
		Users: []UserConfig{
			{
				User: models.User{
					ID: "user-1", VehicleID: "MH01AB1234", Email: "driver@evsmartcharger.com", Name: "Rahul Sharma",
					Phone: "+91 98765 00001", MemberSince: memberSince, PreferredMode: models.ChargingModeNormal,
					BatteryLevel: 45, InitialBalance: 1250,
				},
				RFID: "RFID123456789",
			},
			{
				User: models.User{
					ID: "admin", VehicleID: "ADMIN001", Email: "admin@evsmartcharger.com", Name: "Station Admin",
					IsAdmin: true, MemberSince: memberSince, PreferredMode: models.ChargingModeFast, BatteryLevel: 45,
				},
				RFID: "ADMIN123456789",
			},
		},
	}
}

// Load reads configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	return load(os.Getenv(libconfig.PathEnv), os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if err := libconfig.Load(cfg, path, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Charging.BaseRate <= 0 {
		return errors.New("config: base rate must be positive")
	}
	if len(c.Stations) == 0 {
		return errors.New("config: at least one station required")
	}
	if c.Simulation.PaymentFailureRate < 0 || c.Simulation.PaymentFailureRate > 1 ||
		c.Simulation.EmailFailureRate < 0 || c.Simulation.EmailFailureRate > 1 {
		return errors.New("config: failure rates must be within [0, 1]")
	}
	if c.Charging.NodeID < 0 || c.Charging.NodeID > 1023 {
		return errors.New("config: node id must be within [0, 1023]")
	}
	seen := make(map[string]bool, len(c.Stations))
	for _, st := range c.Stations {
		if st.ID == "" {
			return errors.New("config: station id required")
		}
		if seen[st.ID] {
			return fmt.Errorf("config: duplicate station %q", st.ID)
		}
		seen[st.ID] = true
		if st.PowerOutputKW <= 0 {
			return fmt.Errorf("config: station %q needs a positive power output", st.ID)
		}
		if st.Status != "" && !st.Status.Valid() {
			return fmt.Errorf("config: station %q has invalid status %q", st.ID, st.Status)
		}
	}
	for _, u := range c.Users {
		if u.ID == "" || u.VehicleID == "" {
			return errors.New("config: user id and vehicle id required")
		}
		if u.RFID == "" && u.RFIDHash == "" {
			return fmt.Errorf("config: user %q needs rfid or rfidHash", u.ID)
		}
	}
	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.Broker) == "" {
		return errors.New("config: mqtt broker required when mqtt is enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// HTTPAddress returns :port style unless a host is given.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// TickInterval returns the recompute interval.
func (c *Config) TickInterval() time.Duration {
	if c.Charging.TickInterval <= 0 {
		return 5 * time.Second
	}
	return c.Charging.TickInterval
}

// JWTExpiration returns token lifetime.
func (c *Config) JWTExpiration() time.Duration {
	if c.Auth.JWTExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Auth.JWTExpirationMinutes) * time.Minute
}

// Location resolves the tariff timezone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Charging.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Charging.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Charging.Timezone, err)
	}
	return loc, nil
}

// Tariff builds the pricing model.
func (c *Config) Tariff() energy.Tariff {
	return energy.Tariff{
		BaseRate:          c.Charging.BaseRate,
		PeakMultiplier:    c.Charging.PeakMultiplier,
		OffPeakMultiplier: c.Charging.OffPeakMultiplier,
		PeakWindows:       c.Charging.PeakWindows,
		OffPeakWindows:    c.Charging.OffPeakWindows,
		LoadThreshold:     c.Charging.LoadThreshold,
		LoadMultiplier:    c.Charging.LoadMultiplier,
	}.WithDefaults()
}

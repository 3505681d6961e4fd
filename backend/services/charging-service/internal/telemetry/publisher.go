// Package telemetry mirrors station and session state to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/models"
)

// Config configures the broker connection.
type Config struct {
	Enabled        bool
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	PublishTimeout time.Duration
}

// StationStatus is the retained JSON document published per station.
type StationStatus struct {
	StationID    string               `json:"stationId"`
	Name         string               `json:"name"`
	Status       models.StationStatus `json:"status"`
	SessionID    string               `json:"sessionId,omitempty"`
	PowerKW      float64              `json:"power"`
	EnergyKWh    float64              `json:"energy"`
	BatteryLevel float64              `json:"battery"`
	Cost         float64              `json:"cost"`
	Timestamp    time.Time            `json:"timestamp"`
}

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher publishes station status. A disabled publisher drops everything.
type Publisher struct {
	client  client
	conn    mqtt.Client
	prefix  string
	timeout time.Duration
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewPublisher connects to the broker when enabled.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect to %s: %w", cfg.Broker, token.Error())
	}

	p := newPublisher(conn, cfg.TopicPrefix, cfg.PublishTimeout, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(c client, prefix string, timeout time.Duration, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = "evcharge"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Publisher{client: c, prefix: prefix, timeout: timeout, enabled: true, logger: logger, now: time.Now}
}

// StationTopic is the retained status topic of a station.
func (p *Publisher) StationTopic(stationID string) string {
	return fmt.Sprintf("%s/stations/%s/status", p.prefix, stationID)
}

// SessionCompletedTopic is the topic a finished session is announced on.
func (p *Publisher) SessionCompletedTopic(sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s/completed", p.prefix, sessionID)
}

// StationChanged publishes the retained status and the per-field topics of a station.
func (p *Publisher) StationChanged(_ context.Context, station models.Station, session *models.Session) {
	if !p.enabled {
		return
	}
	status := StationStatus{
		StationID: station.ID,
		Name:      station.Name,
		Status:    station.Status,
		Timestamp: p.now().UTC(),
	}
	if session != nil {
		status.SessionID = session.ID
		if session.Status == models.SessionStatusActive {
			status.PowerKW = session.PowerKW
		}
		status.EnergyKWh = energy.Round2(session.EnergyConsumedKWh)
		status.BatteryLevel = energy.Round2(energy.BatteryLevel(session.BatteryStart, session.EnergyConsumedKWh, session.BatteryCapacityKWh))
		status.Cost = energy.Round2(session.TotalCost)
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"power", status.PowerKW},
		{"energy", status.EnergyKWh},
		{"battery", status.BatteryLevel},
		{"cost", status.Cost},
	}
	for _, f := range fields {
		topic := fmt.Sprintf("%s/stations/%s/%s", p.prefix, station.ID, f.name)
		p.send(topic, false, fmt.Sprintf("%v", f.value))
	}

	payload, err := json.Marshal(status)
	if err != nil {
		p.logger.Warn("marshal station status failed", zap.String("station_id", station.ID), zap.Error(err))
		return
	}
	p.send(p.StationTopic(station.ID), true, payload)
}

// SessionCompleted announces a finished session with its invoice totals.
func (p *Publisher) SessionCompleted(_ context.Context, session models.Session, inv models.Invoice) {
	if !p.enabled {
		return
	}
	payload, err := json.Marshal(struct {
		Session models.Session `json:"session"`
		Invoice string         `json:"invoiceNumber"`
		Total   float64        `json:"total"`
	}{Session: session, Invoice: inv.InvoiceNumber, Total: inv.Total})
	if err != nil {
		p.logger.Warn("marshal completed session failed", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	p.send(p.SessionCompletedTopic(session.ID), false, payload)
}

func (p *Publisher) send(topic string, retained bool, payload interface{}) {
	token := p.client.Publish(topic, 0, retained, payload)
	go func() {
		if !token.WaitTimeout(p.timeout) {
			p.logger.Warn("mqtt publish timed out", zap.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

// Enabled reports whether the publisher talks to a broker.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// IsConnected reports broker connectivity.
func (p *Publisher) IsConnected() bool {
	return p.enabled && p.conn != nil && p.conn.IsConnected()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.enabled && p.conn != nil {
		p.conn.Disconnect(250)
	}
}

// Package ws streams live charging status to dashboards over WebSockets.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/service"
)

// StatusSource renders the status frame of one user.
type StatusSource interface {
	Status(ctx context.Context, userID string, now time.Time) service.StatusView
}

// Hub tracks subscribed dashboards and pushes status frames to them.
type Hub struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	source       StatusSource
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	logger       *zap.Logger
	now          func() time.Time
}

// NewHub builds the hub.
func NewHub(source StatusSource, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		connections:  make(map[string]*Connection),
		source:       source,
		writeTimeout: writeTimeout,
		logger:       logger,
		now:          time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Add registers a connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
}

// Remove drops a connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// Count returns the number of open streams.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast sends every subscriber its own status as of now. Its signature matches
// service.TickObserver.
func (h *Hub) Broadcast(ctx context.Context, now time.Time) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	frames := make(map[string][]byte, len(conns))
	for _, conn := range conns {
		frame, ok := frames[conn.UserID()]
		if !ok {
			frame = h.frame(ctx, conn.UserID(), now)
			frames[conn.UserID()] = frame
		}
		if frame != nil {
			conn.Send(frame)
		}
	}
}

func (h *Hub) frame(ctx context.Context, userID string, now time.Time) []byte {
	payload, err := json.Marshal(h.source.Status(ctx, userID, now))
	if err != nil {
		h.logger.Warn("marshal status frame failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return payload
}

// Serve upgrades the request and streams userID's status until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(uuid.NewString(), userID, conn, h.writeTimeout, h.logger, func(id string) {
		h.Remove(id)
		cancel()
	})
	h.Add(connection)
	if frame := h.frame(ctx, userID, h.now()); frame != nil {
		connection.Send(frame)
	}

	go connection.Start(ctx)
	h.logger.Info("status stream opened", zap.String("user_id", userID))
}

package repository

import (
	"context"
	"sync"

	"evcharge/backend/services/charging-service/internal/models"
)

// HistoryStore keeps finished sessions per user.
type HistoryStore interface {
	Append(ctx context.Context, session models.Session) error
	// List returns the user's sessions newest first.
	List(ctx context.Context, userID string) ([]models.Session, error)
}

// MemoryHistory is the default in-process history store.
type MemoryHistory struct {
	mu    sync.RWMutex
	limit int
	byUID map[string][]models.Session
}

// NewMemoryHistory keeps up to limit sessions per user; limit <= 0 keeps everything.
func NewMemoryHistory(limit int) *MemoryHistory {
	return &MemoryHistory{limit: limit, byUID: make(map[string][]models.Session)}
}

// Append records a session.
func (m *MemoryHistory) Append(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.byUID[session.UserID], session)
	if m.limit > 0 && len(list) > m.limit {
		list = list[len(list)-m.limit:]
	}
	m.byUID[session.UserID] = list
	return nil
}

// List returns the user's sessions newest first.
func (m *MemoryHistory) List(_ context.Context, userID string) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byUID[userID]
	out := make([]models.Session, len(list))
	for i, s := range list {
		out[len(list)-1-i] = s
	}
	return out, nil
}

package service

import (
	"sync"
	"time"

	"evcharge/backend/services/charging-service/internal/models"
)

// Slot is one station together with the live session bound to it, if any.
type Slot struct {
	Station models.Station
	Session *models.Session
	// RecomputedAt is the latest instant the live session was advanced to.
	RecomputedAt time.Time
}

// observe moves RecomputedAt forward to now and returns the instant a transition applies at.
func (s *Slot) observe(now time.Time) time.Time {
	if now.After(s.RecomputedAt) {
		s.RecomputedAt = now
	}
	return s.RecomputedAt
}

func (s Slot) clone() Slot {
	out := Slot{Station: s.Station, RecomputedAt: s.RecomputedAt}
	if s.Session != nil {
		session := *s.Session
		out.Session = &session
	}
	return out
}

type stationEntry struct {
	mu   sync.Mutex
	slot Slot
}

// StationState is the in-memory fleet. Every station has its own lock; mutations of a
// station and its session happen inside Update.
type StationState struct {
	mu        sync.RWMutex
	entries   map[string]*stationEntry
	order     []string
	startedAt time.Time
}

// NewStationState builds the fleet. Stations configured as charging start idle because no
// session survives a restart.
func NewStationState(stations []models.Station, startedAt time.Time) *StationState {
	s := &StationState{
		entries:   make(map[string]*stationEntry, len(stations)),
		startedAt: startedAt,
	}
	for _, st := range stations {
		if _, dup := s.entries[st.ID]; dup {
			continue
		}
		if st.Status == "" || st.Status == models.StationStatusCharging {
			st.Status = models.StationStatusIdle
		}
		st.CurrentSessionID = ""
		s.entries[st.ID] = &stationEntry{slot: Slot{Station: st}}
		s.order = append(s.order, st.ID)
	}
	return s
}

func (s *StationState) entry(id string) (*stationEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Update runs fn with exclusive access to the station's slot.
func (s *StationState) Update(id string, fn func(slot *Slot) error) error {
	e, ok := s.entry(id)
	if !ok {
		return ErrStationNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.slot)
}

// View returns a copy of one slot.
func (s *StationState) View(id string) (Slot, bool) {
	e, ok := s.entry(id)
	if !ok {
		return Slot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slot.clone(), true
}

// IDs returns station ids in fleet order.
func (s *StationState) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Snapshot returns copies of every slot in fleet order.
func (s *StationState) Snapshot() []Slot {
	ids := s.IDs()
	out := make([]Slot, 0, len(ids))
	for _, id := range ids {
		if slot, ok := s.View(id); ok {
			out = append(out, slot)
		}
	}
	return out
}

// Stations returns copies of every station in fleet order.
func (s *StationState) Stations() []models.Station {
	slots := s.Snapshot()
	out := make([]models.Station, len(slots))
	for i, slot := range slots {
		out[i] = slot.Station
	}
	return out
}

// FindLive returns the station currently holding a live session that matches.
func (s *StationState) FindLive(match func(models.Session) bool) (Slot, bool) {
	for _, slot := range s.Snapshot() {
		if slot.Session != nil && match(*slot.Session) {
			return slot, true
		}
	}
	return Slot{}, false
}

// Load returns the fraction of reachable stations that are charging.
func (s *StationState) Load() float64 {
	var reachable, charging int
	for _, slot := range s.Snapshot() {
		if slot.Station.Status == models.StationStatusOffline {
			continue
		}
		reachable++
		if slot.Station.Status == models.StationStatusCharging {
			charging++
		}
	}
	if reachable == 0 {
		return 0
	}
	return float64(charging) / float64(reachable)
}

// StartedAt is the instant the fleet came up, used for utilization.
func (s *StationState) StartedAt() time.Time {
	return s.startedAt
}

package service

import (
	"strings"
	"sync"

	"evcharge/backend/services/charging-service/internal/models"
)

// UserDirectory is the in-memory account list seeded from configuration.
type UserDirectory struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	order []string
}

// NewUserDirectory builds the directory; later duplicates of an id are ignored.
func NewUserDirectory(users []models.User) *UserDirectory {
	d := &UserDirectory{byID: make(map[string]models.User, len(users))}
	for _, u := range users {
		if _, ok := d.byID[u.ID]; ok {
			continue
		}
		d.byID[u.ID] = u
		d.order = append(d.order, u.ID)
	}
	return d
}

// Get returns the user with the id.
func (d *UserDirectory) Get(id string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

// ByVehicle looks a user up by vehicle registration, ignoring case and spaces.
func (d *UserDirectory) ByVehicle(vehicleID string) (models.User, error) {
	key := normalizeVehicle(vehicleID)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.order {
		if normalizeVehicle(d.byID[id].VehicleID) == key {
			return d.byID[id], nil
		}
	}
	return models.User{}, ErrUserNotFound
}

// List returns users in seed order.
func (d *UserDirectory) List() []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// SetBatteryLevel records the last known battery level reported at session end.
func (d *UserDirectory) SetBatteryLevel(id string, level float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return
	}
	u.BatteryLevel = level
	d.byID[id] = u
}

func normalizeVehicle(v string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
}

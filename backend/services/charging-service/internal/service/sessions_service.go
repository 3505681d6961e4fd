package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"evcharge/backend/libs/idgen"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/repository"
)

// SessionArchive receives every finished session.
type SessionArchive interface {
	ArchiveSession(ctx context.Context, session models.Session) error
}

// InvoiceGenerator builds the invoice of a terminal session.
type InvoiceGenerator interface {
	Generate(session models.Session, station models.Station, transactionID string) (models.Invoice, error)
}

// Notifier is told about station and session changes. Implementations must not block.
type Notifier interface {
	StationChanged(ctx context.Context, station models.Station, session *models.Session)
	SessionCompleted(ctx context.Context, session models.Session, inv models.Invoice)
}

// SessionsConfig holds the charging model parameters.
type SessionsConfig struct {
	Tariff             energy.Tariff
	Location           *time.Location
	DefaultBattery     float64
	DefaultTarget      float64
	BatteryCapacityKWh float64
	// AllowConcurrentStations relaxes the single charger rule to one live session per
	// station and per user.
	AllowConcurrentStations bool
	// RetainFinished bounds how many finished sessions and invoices stay addressable by id.
	RetainFinished int
}

func (c SessionsConfig) withDefaults() SessionsConfig {
	c.Tariff = c.Tariff.WithDefaults()
	if c.DefaultBattery <= 0 {
		c.DefaultBattery = 45
	}
	if c.DefaultTarget <= 0 {
		c.DefaultTarget = 80
	}
	if c.BatteryCapacityKWh <= 0 {
		c.BatteryCapacityKWh = 50
	}
	if c.RetainFinished <= 0 {
		c.RetainFinished = 1000
	}
	return c
}

// SessionsDeps are the collaborators of SessionsService. History, Archive and Notifier
// are optional.
type SessionsDeps struct {
	Stations *StationState
	Users    *UserDirectory
	Wallet   *WalletService
	History  repository.HistoryStore
	Archive  SessionArchive
	Invoices InvoiceGenerator
	Notifier Notifier
	IDs      *idgen.Generator
}

// StartSessionInput is the start request.
type StartSessionInput struct {
	UserID        string
	StationID     string
	VehicleID     string
	Mode          models.ChargingMode
	TargetBattery float64
	Now           time.Time
}

// StopResult is the outcome of finishing a session.
type StopResult struct {
	Session     models.Session      `json:"session"`
	Invoice     models.Invoice      `json:"invoice"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
}

type finishedSession struct {
	session models.Session
	invoice models.Invoice
}

// SessionsService owns the charging session lifecycle.
type SessionsService struct {
	cfg    SessionsConfig
	deps   SessionsDeps
	logger *zap.Logger

	// startMu serializes the live session check and the station binding of Start.
	startMu sync.Mutex

	mu         sync.RWMutex
	finished   map[string]finishedSession
	retired    []string // finished ids, oldest first
	lastByUser map[string]string
}

// NewSessionsService builds the lifecycle manager.
func NewSessionsService(cfg SessionsConfig, deps SessionsDeps, logger *zap.Logger) *SessionsService {
	if deps.History == nil {
		deps.History = repository.NewMemoryHistory(0)
	}
	return &SessionsService{
		cfg:        cfg.withDefaults(),
		deps:       deps,
		logger:     logger,
		finished:   make(map[string]finishedSession),
		lastByUser: make(map[string]string),
	}
}

// Tariff returns the effective tariff.
func (s *SessionsService) Tariff() energy.Tariff {
	return s.cfg.Tariff
}

// CurrentRate prices a kWh at now for the current fleet load.
func (s *SessionsService) CurrentRate(now time.Time) (rate float64, hour int, load float64) {
	load = s.deps.Stations.Load()
	local := now
	if s.cfg.Location != nil {
		local = now.In(s.cfg.Location)
	}
	return s.cfg.Tariff.DynamicPrice(local.Hour(), load), local.Hour(), load
}

// Start opens a session on an idle station.
func (s *SessionsService) Start(ctx context.Context, in StartSessionInput) (models.Session, error) {
	user, err := s.deps.Users.Get(in.UserID)
	if err != nil {
		return models.Session{}, err
	}
	mode := in.Mode
	if mode == "" {
		mode = user.PreferredMode
	}
	if mode == "" {
		mode = models.ChargingModeNormal
	}
	if !mode.Valid() {
		return models.Session{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	target := in.TargetBattery
	if target == 0 {
		target = s.cfg.DefaultTarget
	}
	if target <= 0 || target > 100 {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidTarget, target)
	}
	vehicleID := in.VehicleID
	if vehicleID == "" {
		vehicleID = user.VehicleID
	}
	batteryStart := user.BatteryLevel
	if batteryStart <= 0 || batteryStart > 100 {
		batteryStart = s.cfg.DefaultBattery
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if existing, ok := s.deps.Stations.FindLive(func(live models.Session) bool {
		return !s.cfg.AllowConcurrentStations || live.UserID == in.UserID
	}); ok {
		return models.Session{}, fmt.Errorf("%w: session %s on %s", ErrSessionAlreadyActive, existing.Session.ID, existing.Station.ID)
	}

	rate, _, load := s.CurrentRate(in.Now)

	var (
		session models.Session
		station models.Station
	)
	err = s.deps.Stations.Update(in.StationID, func(slot *Slot) error {
		if slot.Station.Status != models.StationStatusIdle || slot.Session != nil {
			return fmt.Errorf("%w: %s is %s", ErrStationUnavailable, slot.Station.ID, slot.Station.Status)
		}
		estimate := energy.Round2(energy.EstimatedCost(batteryStart, target, s.cfg.BatteryCapacityKWh, rate))
		balance, err := s.deps.Wallet.Balance(ctx, in.UserID)
		if err != nil {
			return err
		}
		if balance < estimate {
			return fmt.Errorf("%w: balance %.2f, estimated cost %.2f", ErrInsufficientBalance, balance, estimate)
		}

		session = models.Session{
			ID:                 s.deps.IDs.Next(""),
			UserID:             in.UserID,
			VehicleID:          vehicleID,
			StationID:          slot.Station.ID,
			StartTime:          in.Now,
			CostPerKWh:         rate,
			BatteryStart:       batteryStart,
			Status:             models.SessionStatusActive,
			Mode:               mode,
			TargetBattery:      target,
			PowerKW:            energy.ModePower(slot.Station.PowerOutputKW, mode),
			BatteryCapacityKWh: s.cfg.BatteryCapacityKWh,
		}
		bound := session
		slot.Session = &bound
		slot.RecomputedAt = in.Now
		slot.Station.Status = models.StationStatusCharging
		slot.Station.CurrentSessionID = session.ID
		station = slot.Station
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}

	s.logger.Info("charging session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
		zap.String("station_id", session.StationID),
		zap.String("mode", string(mode)),
		zap.Float64("rate", rate),
		zap.Float64("load", load),
	)
	s.notifyStation(ctx, station, &session)
	return session, nil
}

// RecomputeSession advances the energy and cost of a live session to now. Paused time does
// not count and energy never decreases. Terminal sessions are returned unchanged.
func RecomputeSession(session models.Session, now time.Time) models.Session {
	if session.Status.Terminal() {
		return session
	}
	computed := energy.EnergyConsumed(activeSeconds(session, now), session.PowerKW)
	if computed > session.EnergyConsumedKWh {
		session.EnergyConsumedKWh = computed
	}
	session.TotalCost = energy.TotalCost(session.EnergyConsumedKWh, session.CostPerKWh)
	return session
}

func activeSeconds(session models.Session, now time.Time) float64 {
	paused := session.PausedSeconds
	if session.PausedAt != nil && now.After(*session.PausedAt) {
		paused += now.Sub(*session.PausedAt).Seconds()
	}
	active := now.Sub(session.StartTime).Seconds() - paused
	if active < 0 {
		return 0
	}
	return active
}

// CurrentBattery returns the modelled battery level of a session.
func CurrentBattery(session models.Session) float64 {
	if session.BatteryEnd != nil {
		return *session.BatteryEnd
	}
	return energy.BatteryLevel(session.BatteryStart, session.EnergyConsumedKWh, session.BatteryCapacityKWh)
}

// Stop completes the user's live session.
func (s *SessionsService) Stop(ctx context.Context, userID string, now time.Time) (*StopResult, error) {
	slot, ok := s.deps.Stations.FindLive(func(live models.Session) bool {
		return live.UserID == userID
	})
	if !ok {
		return nil, ErrNoActiveSession
	}
	return s.finish(ctx, slot.Station.ID, slot.Session.ID, now, models.SessionStatusCompleted, "stopped by user", models.StationStatusIdle)
}

// ForceStop terminates whatever session the station holds with status stopped.
func (s *SessionsService) ForceStop(ctx context.Context, stationID string, now time.Time, reason string) (*StopResult, error) {
	slot, ok := s.deps.Stations.View(stationID)
	if !ok {
		return nil, ErrStationNotFound
	}
	if slot.Session == nil {
		return nil, ErrNoActiveSession
	}
	if reason == "" {
		reason = "stopped by operator"
	}
	return s.finish(ctx, stationID, slot.Session.ID, now, models.SessionStatusStopped, reason, models.StationStatusIdle)
}

func (s *SessionsService) finish(ctx context.Context, stationID, sessionID string, now time.Time, status models.SessionStatus, reason string, stationStatus models.StationStatus) (*StopResult, error) {
	var (
		final   models.Session
		station models.Station
	)
	err := s.deps.Stations.Update(stationID, func(slot *Slot) error {
		if slot.Session == nil || slot.Session.ID != sessionID {
			return ErrNoActiveSession
		}
		// a tick may already have advanced the session past now
		now := slot.observe(now)
		session := *slot.Session
		if session.PausedAt != nil {
			if now.After(*session.PausedAt) {
				session.PausedSeconds += now.Sub(*session.PausedAt).Seconds()
			}
			session.PausedAt = nil
		}
		session = RecomputeSession(session, now)
		end := now
		session.EndTime = &end
		batteryEnd := energy.BatteryLevel(session.BatteryStart, session.EnergyConsumedKWh, session.BatteryCapacityKWh)
		session.BatteryEnd = &batteryEnd
		session.Status = status
		session.StopReason = reason

		st := &slot.Station
		st.TotalEnergyDispensedKWh += session.EnergyConsumedKWh
		st.TotalRevenue = energy.Sum2(st.TotalRevenue, energy.Round2(session.TotalCost))
		st.SessionsCount++
		st.ChargingSeconds += session.DurationSeconds(now)
		st.Status = stationStatus
		st.CurrentSessionID = ""
		slot.Session = nil

		final = session
		station = *st
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &StopResult{Session: final}
	amount := energy.Round2(final.TotalCost)
	if amount > 0 {
		tx, err := s.deps.Wallet.Charge(ctx, final.UserID, final.ID, amount, chargeDescription(final.ID))
		if err != nil {
			s.logger.Error("session debit failed", zap.String("session_id", final.ID), zap.Error(err))
		} else {
			result.Transaction = &tx
		}
	}
	s.deps.Users.SetBatteryLevel(final.UserID, *final.BatteryEnd)

	if err := s.deps.History.Append(ctx, final); err != nil {
		s.logger.Warn("history append failed", zap.String("session_id", final.ID), zap.Error(err))
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.ArchiveSession(ctx, final); err != nil {
			s.logger.Warn("archive session failed", zap.String("session_id", final.ID), zap.Error(err))
		}
	}

	txID := ""
	if result.Transaction != nil {
		txID = result.Transaction.ID
	}
	inv, err := s.deps.Invoices.Generate(final, station, txID)
	if err != nil {
		return nil, err
	}
	result.Invoice = inv

	s.remember(final, inv)

	s.logger.Info("charging session finished",
		zap.String("session_id", final.ID),
		zap.String("status", string(final.Status)),
		zap.String("reason", reason),
		zap.Float64("energy_kwh", final.EnergyConsumedKWh),
		zap.Float64("total_cost", amount),
		zap.String("invoice", inv.InvoiceNumber),
	)
	s.notifyStation(ctx, station, nil)
	if s.deps.Notifier != nil {
		s.deps.Notifier.SessionCompleted(ctx, final, inv)
	}
	return result, nil
}

// remember keeps the finished session addressable, evicting the oldest beyond the limit.
func (s *SessionsService) remember(session models.Session, inv models.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[session.ID] = finishedSession{session: session, invoice: inv}
	s.lastByUser[session.UserID] = session.ID
	s.retired = append(s.retired, session.ID)
	for len(s.retired) > s.cfg.RetainFinished {
		oldest := s.retired[0]
		s.retired = s.retired[1:]
		if rec, ok := s.finished[oldest]; ok {
			if s.lastByUser[rec.session.UserID] == oldest {
				delete(s.lastByUser, rec.session.UserID)
			}
			delete(s.finished, oldest)
		}
	}
}

func chargeDescription(sessionID string) string {
	short := sessionID
	if len(short) > 4 {
		short = short[len(short)-4:]
	}
	return "EV Charging - Session #" + short
}

// Pause suspends energy delivery; the station stays bound. Pausing a paused session is a no-op.
func (s *SessionsService) Pause(ctx context.Context, userID string, now time.Time) (models.Session, error) {
	return s.transition(ctx, userID, now, func(session *models.Session, now time.Time) {
		if session.Status != models.SessionStatusActive {
			return
		}
		*session = RecomputeSession(*session, now)
		at := now
		session.PausedAt = &at
		session.Status = models.SessionStatusPaused
	})
}

// Resume continues a paused session. Resuming an active session is a no-op.
func (s *SessionsService) Resume(ctx context.Context, userID string, now time.Time) (models.Session, error) {
	return s.transition(ctx, userID, now, func(session *models.Session, now time.Time) {
		if session.Status != models.SessionStatusPaused {
			return
		}
		if session.PausedAt != nil && now.After(*session.PausedAt) {
			session.PausedSeconds += now.Sub(*session.PausedAt).Seconds()
		}
		session.PausedAt = nil
		session.Status = models.SessionStatusActive
		*session = RecomputeSession(*session, now)
	})
}

func (s *SessionsService) transition(ctx context.Context, userID string, now time.Time, apply func(session *models.Session, at time.Time)) (models.Session, error) {
	slot, ok := s.deps.Stations.FindLive(func(live models.Session) bool {
		return live.UserID == userID
	})
	if !ok {
		return models.Session{}, ErrNoActiveSession
	}
	var (
		out     models.Session
		station models.Station
	)
	err := s.deps.Stations.Update(slot.Station.ID, func(cur *Slot) error {
		if cur.Session == nil || cur.Session.ID != slot.Session.ID {
			return ErrNoActiveSession
		}
		apply(cur.Session, cur.observe(now))
		out = *cur.Session
		station = cur.Station
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}
	s.logger.Info("charging session updated", zap.String("session_id", out.ID), zap.String("status", string(out.Status)))
	s.notifyStation(ctx, station, &out)
	return out, nil
}

// Tick recomputes every live session at now and returns the applied updates.
func (s *SessionsService) Tick(ctx context.Context, now time.Time) []models.Session {
	var applied []models.Session
	for _, slot := range s.deps.Stations.Snapshot() {
		if slot.Session == nil {
			continue
		}
		update := RecomputeSession(*slot.Session, now)
		if s.ApplyUpdate(slot.Station.ID, update, now) {
			applied = append(applied, update)
			station, _ := s.deps.Stations.View(slot.Station.ID)
			s.notifyStation(ctx, station.Station, station.Session)
		}
	}
	return applied
}

// ApplyUpdate stores a session recomputed at now if the station still holds that session id.
// Only energy and cost move forward; lifecycle fields are left to the owning calls. Stop,
// pause and resume calls arriving later with an earlier clock reading apply at now instead.
func (s *SessionsService) ApplyUpdate(stationID string, update models.Session, now time.Time) bool {
	err := s.deps.Stations.Update(stationID, func(slot *Slot) error {
		if slot.Session == nil || slot.Session.ID != update.ID {
			return errStaleUpdate
		}
		// a pause or resume landed between the snapshot and now
		if slot.Session.Status != update.Status || slot.Session.PausedSeconds != update.PausedSeconds {
			return errStaleUpdate
		}
		slot.observe(now)
		if update.EnergyConsumedKWh > slot.Session.EnergyConsumedKWh {
			slot.Session.EnergyConsumedKWh = update.EnergyConsumedKWh
		}
		slot.Session.TotalCost = energy.TotalCost(slot.Session.EnergyConsumedKWh, slot.Session.CostPerKWh)
		return nil
	})
	return err == nil
}

var errStaleUpdate = errors.New("sessions: stale update")

// StatusView is the live dashboard status of one user.
type StatusView struct {
	Charging                 bool            `json:"charging"`
	Paused                   bool            `json:"paused"`
	ElapsedMin               int64           `json:"elapsed_min"`
	ElapsedSeconds           int64           `json:"elapsed_seconds"`
	EstimatedCost            float64         `json:"estimated_cost"`
	CurrentPower             float64         `json:"currentPower"`
	EnergyConsumed           float64         `json:"energyConsumed"`
	BatteryLevel             float64         `json:"batteryLevel"`
	EstimatedTimeToFull      int64           `json:"estimatedTimeToFull"`
	EstimatedSecondsToTarget int64           `json:"estimatedSecondsToTarget"`
	ChargingRate             float64         `json:"chargingRate"`
	CO2SavedKg               float64         `json:"co2Saved"`
	FuelSavedLitres          float64         `json:"fuelSaved"`
	Session                  *models.Session `json:"session,omitempty"`
	LastSession              *models.Session `json:"last_session,omitempty"`
}

// Status reports the user's live session as of now without mutating it.
func (s *SessionsService) Status(_ context.Context, userID string, now time.Time) StatusView {
	var view StatusView
	s.mu.RLock()
	if id, ok := s.lastByUser[userID]; ok {
		last := s.finished[id].session
		view.LastSession = &last
	}
	s.mu.RUnlock()

	slot, ok := s.deps.Stations.FindLive(func(live models.Session) bool {
		return live.UserID == userID
	})
	if !ok {
		if view.LastSession != nil {
			view.BatteryLevel = CurrentBattery(*view.LastSession)
		}
		return view
	}

	session := RecomputeSession(*slot.Session, now)
	battery := CurrentBattery(session)
	elapsed := session.DurationSeconds(now)
	view.Charging = true
	view.Paused = session.Status == models.SessionStatusPaused
	view.ElapsedSeconds = int64(elapsed)
	view.ElapsedMin = int64(elapsed / 60)
	view.EstimatedCost = energy.Round2(session.TotalCost)
	view.EnergyConsumed = session.EnergyConsumedKWh
	view.BatteryLevel = battery
	if !view.Paused {
		view.CurrentPower = session.PowerKW
	}
	view.EstimatedSecondsToTarget = energy.EstimatedTimeRemaining(battery, session.TargetBattery, session.PowerKW, session.BatteryCapacityKWh)
	view.EstimatedTimeToFull = int64(math.Ceil(float64(view.EstimatedSecondsToTarget) / 60))
	view.ChargingRate = energy.ChargingRate(session.EnergyConsumedKWh, activeSeconds(session, now))
	view.CO2SavedKg = energy.CO2SavedKg(session.EnergyConsumedKWh)
	view.FuelSavedLitres = energy.FuelSavedLitres(session.EnergyConsumedKWh)
	view.Session = &session
	return view
}

// Session returns a live (recomputed to now) or finished session by id.
func (s *SessionsService) Session(_ context.Context, sessionID string, now time.Time) (models.Session, error) {
	s.mu.RLock()
	rec, ok := s.finished[sessionID]
	s.mu.RUnlock()
	if ok {
		return rec.session, nil
	}
	slot, ok := s.deps.Stations.FindLive(func(live models.Session) bool {
		return live.ID == sessionID
	})
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return RecomputeSession(*slot.Session, now), nil
}

// Invoice returns the invoice issued when the session finished.
func (s *SessionsService) Invoice(_ context.Context, sessionID string) (models.Invoice, error) {
	s.mu.RLock()
	rec, ok := s.finished[sessionID]
	s.mu.RUnlock()
	if ok {
		return rec.invoice, nil
	}
	if _, live := s.deps.Stations.FindLive(func(live models.Session) bool { return live.ID == sessionID }); live {
		return models.Invoice{}, invoice.ErrSessionNotTerminal
	}
	return models.Invoice{}, ErrSessionNotFound
}

// History returns the user's finished sessions newest first.
func (s *SessionsService) History(ctx context.Context, userID string) ([]models.Session, error) {
	return s.deps.History.List(ctx, userID)
}

// Stations returns the fleet in configured order.
func (s *SessionsService) Stations() []models.Station {
	return s.deps.Stations.Stations()
}

// Station returns one station.
func (s *SessionsService) Station(id string) (models.Station, error) {
	slot, ok := s.deps.Stations.View(id)
	if !ok {
		return models.Station{}, ErrStationNotFound
	}
	return slot.Station, nil
}

func (s *SessionsService) notifyStation(ctx context.Context, station models.Station, session *models.Session) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.StationChanged(ctx, station, session)
}

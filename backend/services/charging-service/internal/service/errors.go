package service

import "errors"

var (
	// ErrStationNotFound is returned for unknown station ids.
	ErrStationNotFound = errors.New("sessions: station not found")
	// ErrStationUnavailable is returned when the station is not idle.
	ErrStationUnavailable = errors.New("sessions: station not available for charging")
	// ErrSessionAlreadyActive is returned when a live session already holds the charger.
	ErrSessionAlreadyActive = errors.New("sessions: charging session already in progress")
	// ErrNoActiveSession is returned when stop/pause/resume finds nothing to act on.
	ErrNoActiveSession = errors.New("sessions: no active charging session")
	// ErrSessionNotFound is returned when a completed session id is unknown.
	ErrSessionNotFound = errors.New("sessions: session not found")
	// ErrInvalidMode is returned for unknown charging modes.
	ErrInvalidMode = errors.New("sessions: invalid charging mode")
	// ErrInvalidTarget is returned for target battery levels outside (0, 100].
	ErrInvalidTarget = errors.New("sessions: invalid target battery")
	// ErrInvalidStationStatus is returned for unknown or disallowed station statuses.
	ErrInvalidStationStatus = errors.New("sessions: invalid station status")

	// ErrInsufficientBalance is returned when the wallet cannot cover a session.
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	// ErrInvalidAmount is returned for amounts outside the allowed range.
	ErrInvalidAmount = errors.New("wallet: invalid amount")
	// ErrUnknownPaymentMethod is returned for unsupported payment methods.
	ErrUnknownPaymentMethod = errors.New("wallet: unknown payment method")

	// ErrUserNotFound is returned for unknown user ids.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

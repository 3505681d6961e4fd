package repository

import (
	"context"
	"database/sql"

	"evcharge/backend/services/charging-service/internal/models"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS charging_sessions_archive (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	vehicle_id      TEXT NOT NULL,
	station_id      TEXT NOT NULL,
	status          TEXT NOT NULL,
	mode            TEXT NOT NULL,
	start_time      TIMESTAMPTZ NOT NULL,
	end_time        TIMESTAMPTZ,
	energy_kwh      DOUBLE PRECISION NOT NULL,
	cost_per_kwh    NUMERIC(10, 2) NOT NULL,
	total_cost      NUMERIC(12, 2) NOT NULL,
	battery_start   DOUBLE PRECISION NOT NULL,
	battery_end     DOUBLE PRECISION,
	stop_reason     TEXT,
	archived_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS charging_sessions_archive_user_idx ON charging_sessions_archive (user_id, start_time DESC);
CREATE TABLE IF NOT EXISTS wallet_transactions_archive (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	type            TEXT NOT NULL,
	amount          NUMERIC(12, 2) NOT NULL,
	description     TEXT NOT NULL,
	session_id      TEXT,
	payment_method  TEXT,
	fee             NUMERIC(10, 2) NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	reference       TEXT,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS wallet_transactions_archive_user_idx ON wallet_transactions_archive (user_id, created_at DESC);
`

// ArchiveRepository appends finished sessions and ledger entries to Postgres.
type ArchiveRepository struct {
	db *sql.DB
}

// NewArchiveRepository returns repository.
func NewArchiveRepository(db *sql.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// EnsureSchema creates the archive tables when missing.
func (r *ArchiveRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, archiveSchema)
	return err
}

// ArchiveSession stores a terminal session. Re-archiving the same id is a no-op.
func (r *ArchiveRepository) ArchiveSession(ctx context.Context, s models.Session) error {
	const query = `
		INSERT INTO charging_sessions_archive (
			id, user_id, vehicle_id, station_id, status, mode, start_time, end_time,
			energy_kwh, cost_per_kwh, total_cost, battery_start, battery_end, stop_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.VehicleID,
		s.StationID,
		string(s.Status),
		string(s.Mode),
		s.StartTime,
		s.EndTime,
		s.EnergyConsumedKWh,
		s.CostPerKWh,
		s.TotalCost,
		s.BatteryStart,
		s.BatteryEnd,
		nullString(s.StopReason),
	)
	return err
}

// ArchiveTransaction stores a ledger entry. Re-archiving the same id is a no-op.
func (r *ArchiveRepository) ArchiveTransaction(ctx context.Context, tx models.Transaction) error {
	const query = `
		INSERT INTO wallet_transactions_archive (
			id, user_id, type, amount, description, session_id, payment_method, fee, status, reference, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount,
		tx.Description,
		nullString(tx.SessionID),
		nullString(tx.PaymentMethod),
		tx.TransactionFee,
		tx.Status,
		nullString(tx.Reference),
		tx.Timestamp,
	)
	return err
}

// SessionsByUser returns the last limit archived sessions for the user, newest first.
func (r *ArchiveRepository) SessionsByUser(ctx context.Context, userID string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, vehicle_id, station_id, status, mode, start_time, end_time,
		       energy_kwh, cost_per_kwh, total_cost, battery_start, battery_end, COALESCE(stop_reason, '')
		FROM charging_sessions_archive
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var (
			s          models.Session
			status     string
			mode       string
			endTime    sql.NullTime
			batteryEnd sql.NullFloat64
		)
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.VehicleID, &s.StationID, &status, &mode, &s.StartTime, &endTime,
			&s.EnergyConsumedKWh, &s.CostPerKWh, &s.TotalCost, &s.BatteryStart, &batteryEnd, &s.StopReason,
		); err != nil {
			return nil, err
		}
		s.Status = models.SessionStatus(status)
		s.Mode = models.ChargingMode(mode)
		if endTime.Valid {
			t := endTime.Time
			s.EndTime = &t
		}
		if batteryEnd.Valid {
			v := batteryEnd.Float64
			s.BatteryEnd = &v
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcharge/backend/libs/db"
	libredis "evcharge/backend/libs/redis"
	"evcharge/backend/services/charging-service/internal/models"
)

func finished(id, userID string, start time.Time) models.Session {
	end := start.Add(30 * time.Minute)
	batteryEnd := 61.5
	return models.Session{
		ID:                id,
		UserID:            userID,
		VehicleID:         "MH01AB1234",
		StationID:         "station-1",
		StartTime:         start,
		EndTime:           &end,
		EnergyConsumedKWh: 8.25,
		CostPerKWh:        8,
		TotalCost:         66,
		BatteryStart:      45,
		BatteryEnd:        &batteryEnd,
		Status:            models.SessionStatusCompleted,
		Mode:              models.ChargingModeNormal,
	}
}

func TestMemoryHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(0)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, h.Append(ctx, finished("a", "u1", start)))
	require.NoError(t, h.Append(ctx, finished("b", "u1", start.Add(time.Hour))))
	require.NoError(t, h.Append(ctx, finished("c", "u2", start)))

	list, err := h.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)

	empty, err := h.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryHistoryLimit(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(2)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Append(ctx, finished(id, "u1", start)))
	}
	list, err := h.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"c", "b"}, []string{list[0].ID, list[1].ID})
}

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "charging_history:user-1", HistoryKey("user-1"))
}

func TestWriteHistoryCSV(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, []models.Session{finished("a", "u1", start)}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Session ID", records[0][0])
	assert.Equal(t, []string{
		"a", "2024-03-01T10:00:00Z", "station-1", "MH01AB1234", "normal", "30",
		"8.25", "8.00", "66.00", "45.0", "61.5", "completed",
	}, records[1])
}

func TestWriteHistoryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryJSON(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, WriteHistoryJSON(&buf, []models.Session{finished("a", "u1", start)}))
	var decoded []models.Session
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 8.25, decoded[0].EnergyConsumedKWh)
}

func TestRedisHistoryIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := libredis.NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	userID := "it-" + time.Now().Format("150405.000000")
	defer client.Del(ctx, HistoryKey(userID))

	h := NewRedisHistory(client, 2)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Append(ctx, finished(id, userID, start)))
	}
	list, err := h.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestArchiveRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	conn, err := db.NewPostgresDB(ctx, dsn, db.PoolOptions{})
	require.NoError(t, err)
	defer conn.Close()

	repo := NewArchiveRepository(conn)
	require.NoError(t, repo.EnsureSchema(ctx))

	userID := "it-" + time.Now().Format("150405.000000")
	session := finished(userID+"-s", userID, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repo.ArchiveSession(ctx, session))
	require.NoError(t, repo.ArchiveSession(ctx, session))
	require.NoError(t, repo.ArchiveTransaction(ctx, models.Transaction{
		ID: userID + "-t", UserID: userID, Type: models.TransactionTypeCharge, Amount: -66,
		Description: "EV Charging", Timestamp: time.Now(), SessionID: session.ID, Status: "completed",
	}))

	list, err := repo.SessionsByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, session.ID, list[0].ID)
	require.NotNil(t, list[0].BatteryEnd)
	assert.Equal(t, 61.5, *list[0].BatteryEnd)
}

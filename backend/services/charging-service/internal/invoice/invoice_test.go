package invoice

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/payment"
)

func completedSession(energyKWh, rate float64) models.Session {
	start := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	batteryEnd := 61.5
	return models.Session{
		ID:                "1234567890",
		UserID:            "user-1",
		VehicleID:         "MH01AB1234",
		StationID:         "station-1",
		StartTime:         start,
		EndTime:           &end,
		EnergyConsumedKWh: energyKWh,
		CostPerKWh:        rate,
		TotalCost:         energyKWh * rate,
		BatteryStart:      45,
		BatteryEnd:        &batteryEnd,
		Status:            models.SessionStatusCompleted,
		Mode:              models.ChargingModeNormal,
	}
}

func testStation() models.Station {
	return models.Station{ID: "station-1", Name: "Mall Fast Charger", Location: "Phoenix Mall, Mumbai"}
}

func fixedRandom(n int) func(int) int {
	return func(int) int { return n }
}

func TestGenerateReferenceSession(t *testing.T) {
	g := NewGenerator(fixedRandom(42))
	inv, err := g.Generate(completedSession(8.25, 8.00), testStation(), "txn_1")
	require.NoError(t, err)

	assert.Equal(t, "inv-1234567890", inv.ID)
	assert.Equal(t, "INV2403150042", inv.InvoiceNumber)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "EV Charging Session - Mall Fast Charger", inv.Items[0].Description)
	assert.Equal(t, 8.25, inv.Items[0].Units)
	assert.Equal(t, 66.00, inv.Items[0].Amount)
	assert.Equal(t, 66.00, inv.Subtotal)
	assert.Equal(t, 11.88, inv.Tax)
	assert.Equal(t, 77.88, inv.Total)
	assert.Equal(t, int64(1800), inv.DurationSec)
	assert.Equal(t, "Wallet", inv.PaymentMethod)
	assert.Equal(t, "txn_1", inv.TransactionID)
}

func TestGenerateIsIdempotent(t *testing.T) {
	g := NewGenerator(nil)
	session := completedSession(12.345, 9.60)
	first, err := g.Generate(session, testStation(), "")
	require.NoError(t, err)
	second, err := g.Generate(session, testStation(), "")
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Subtotal, second.Subtotal)
	assert.Equal(t, first.Tax, second.Tax)
	assert.Equal(t, first.Total, second.Total)
	assert.True(t, strings.HasPrefix(first.InvoiceNumber, "INV240315"))
	assert.Len(t, first.InvoiceNumber, 13)
}

func TestGenerateTotalIsSubtotalPlusTax(t *testing.T) {
	g := NewGenerator(fixedRandom(1))
	for _, energy := range []float64{0, 0.01, 1.5, 7.777, 33.3, 49.99} {
		inv, err := g.Generate(completedSession(energy, 10.56), testStation(), "")
		require.NoError(t, err)
		assert.InDelta(t, inv.Subtotal*1.18, inv.Total, 0.011, "energy %v", energy)
		assert.Len(t, inv.Items, 1)
	}
}

func TestGeneratePremiumAboveThreshold(t *testing.T) {
	g := NewGenerator(fixedRandom(1))

	inv, err := g.Generate(completedSession(50, 8), testStation(), "")
	require.NoError(t, err)
	assert.Len(t, inv.Items, 1)

	inv, err = g.Generate(completedSession(60, 8), testStation(), "")
	require.NoError(t, err)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Fast Charging Premium", inv.Items[1].Description)
	assert.Equal(t, 505.00, inv.Subtotal)
	assert.Equal(t, 90.90, inv.Tax)
	assert.Equal(t, 595.90, inv.Total)
}

func TestGenerateRejectsLiveSession(t *testing.T) {
	session := completedSession(5, 8)
	session.Status = models.SessionStatusActive
	session.EndTime = nil

	_, err := NewGenerator(nil).Generate(session, testStation(), "")
	assert.ErrorIs(t, err, ErrSessionNotTerminal)
}

func TestGenerateStoppedSession(t *testing.T) {
	session := completedSession(5, 8)
	session.Status = models.SessionStatusStopped

	inv, err := NewGenerator(fixedRandom(0)).Generate(session, models.Station{}, "")
	require.NoError(t, err)
	assert.Equal(t, "EV Charging Session - station-1", inv.Items[0].Description)
	assert.Equal(t, "INV2403150000", inv.InvoiceNumber)
}

func testCompany() models.Company {
	return models.Company{
		Name:      "EV Smart Charger Pvt. Ltd.",
		Address:   "Plot No. 123, Tech Park, Mumbai - 400001",
		Phone:     "+91 98765 43210",
		Email:     "billing@evsmartcharger.com",
		GSTNumber: "GST123456789",
		Website:   "www.evsmartcharger.com",
		UPIID:     "evsmartcharger@upi",
		Currency:  "INR",
	}
}

func TestRenderHTML(t *testing.T) {
	inv, err := NewGenerator(fixedRandom(42)).Generate(completedSession(8.25, 8), testStation(), "txn_1")
	require.NoError(t, err)

	page, err := RenderHTML(inv, testCompany())
	require.NoError(t, err)
	assert.Contains(t, page, "INV2403150042")
	assert.Contains(t, page, "INR 77.88")
	assert.Contains(t, page, "INR 11.88")
	assert.Contains(t, page, "GST (18%)")
	assert.Contains(t, page, "30m")

	again, err := RenderHTML(inv, testCompany())
	require.NoError(t, err)
	assert.Equal(t, page, again)
}

func TestRenderPDF(t *testing.T) {
	inv, err := NewGenerator(fixedRandom(42)).Generate(completedSession(8.25, 8), testStation(), "txn_1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, inv, testCompany()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	noQR := testCompany()
	noQR.UPIID = ""
	var plain bytes.Buffer
	require.NoError(t, RenderPDF(&plain, inv, noQR))
	assert.Less(t, plain.Len(), buf.Len())
}

func TestPaymentURI(t *testing.T) {
	inv := models.Invoice{InvoiceNumber: "INV2403150042", Total: 77.88}
	uri := PaymentURI(inv, testCompany())
	assert.True(t, strings.HasPrefix(uri, "upi://pay?"))
	assert.Contains(t, uri, "am=77.88")
	assert.Contains(t, uri, "tn=INV2403150042")
}

func TestMailerSend(t *testing.T) {
	inv := models.Invoice{InvoiceNumber: "INV1"}

	ok := NewMailer(payment.NewSimulator(0.1, 0, func() float64 { return 0.5 }), zap.NewNop())
	assert.NoError(t, ok.Send(context.Background(), inv, "driver@example.com"))
	assert.ErrorIs(t, ok.Send(context.Background(), inv, "not-an-email"), ErrInvalidEmail)

	failing := NewMailer(payment.NewSimulator(0.1, 0, func() float64 { return 0.05 }), zap.NewNop())
	err := failing.Send(context.Background(), inv, "driver@example.com")
	assert.True(t, errors.Is(err, payment.ErrEmailDeliveryFailed))
}

func TestMailerHonorsCancellation(t *testing.T) {
	m := NewMailer(payment.NewSimulator(0, time.Minute, nil), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, models.Invoice{}, "driver@example.com"), context.Canceled)
}

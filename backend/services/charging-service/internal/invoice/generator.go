// Package invoice turns finished charging sessions into billing documents.
package invoice

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/models"
)

// ErrSessionNotTerminal is returned for sessions that are still active or paused.
var ErrSessionNotTerminal = errors.New("invoice: session is not completed or stopped")

// Billing constants.
const (
	TaxRate             = 0.18
	PremiumThresholdKWh = 50.0
	PremiumFee          = 25.0
	PaymentMethod       = "Wallet"
)

// Generator builds invoices. Only the invoice number suffix is random.
type Generator struct {
	randomN func(n int) int
}

// NewGenerator returns a generator; randomN defaults to math/rand/v2.IntN.
func NewGenerator(randomN func(n int) int) *Generator {
	if randomN == nil {
		randomN = rand.IntN
	}
	return &Generator{randomN: randomN}
}

// Generate builds the invoice for a terminal session charged at station.
func (g *Generator) Generate(session models.Session, station models.Station, transactionID string) (models.Invoice, error) {
	if !session.Status.Terminal() || session.EndTime == nil {
		return models.Invoice{}, ErrSessionNotTerminal
	}

	name := station.Name
	if name == "" {
		name = session.StationID
	}
	items := []models.InvoiceItem{{
		Description: "EV Charging Session - " + name,
		Units:       energy.Round2(session.EnergyConsumedKWh),
		Rate:        session.CostPerKWh,
		Amount:      energy.Round2(session.TotalCost),
		Category:    "charging",
	}}
	if session.EnergyConsumedKWh > PremiumThresholdKWh {
		items = append(items, models.InvoiceItem{
			Description: "Fast Charging Premium",
			Units:       1,
			Rate:        PremiumFee,
			Amount:      PremiumFee,
			Category:    "premium",
		})
	}

	amounts := make([]float64, len(items))
	for i, item := range items {
		amounts[i] = item.Amount
	}
	subtotal := energy.Sum2(amounts...)
	tax := energy.Mul2(subtotal, TaxRate)

	end := *session.EndTime
	return models.Invoice{
		ID:            "inv-" + session.ID,
		SessionID:     session.ID,
		UserID:        session.UserID,
		VehicleID:     session.VehicleID,
		InvoiceNumber: fmt.Sprintf("INV%s%04d", end.Format("060102"), g.randomN(10000)),
		Date:          end,
		StationName:   name,
		Location:      station.Location,
		DurationSec:   int64(session.DurationSeconds(end)),
		Items:         items,
		Subtotal:      subtotal,
		TaxRate:       TaxRate,
		Tax:           tax,
		Total:         energy.Sum2(subtotal, tax),
		PaymentMethod: PaymentMethod,
		TransactionID: transactionID,
		Status:        "paid",
	}, nil
}

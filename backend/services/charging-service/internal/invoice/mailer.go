package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/payment"
)

// ErrInvalidEmail is returned for an empty or malformed recipient.
var ErrInvalidEmail = errors.New("invoice: invalid email address")

// Mailer delivers invoices through the simulated mail relay.
type Mailer struct {
	relay  *payment.Simulator
	logger *zap.Logger
}

// NewMailer builds a mailer on top of relay.
func NewMailer(relay *payment.Simulator, logger *zap.Logger) *Mailer {
	return &Mailer{relay: relay, logger: logger}
}

// Send delivers inv to email once; failures are reported, not retried.
func (m *Mailer) Send(ctx context.Context, inv models.Invoice, email string) error {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}

	ok, err := m.relay.Attempt(ctx)
	if err != nil {
		return err
	}
	if !ok {
		m.logger.Warn("invoice email failed", zap.String("invoice", inv.InvoiceNumber), zap.String("email", email))
		return fmt.Errorf("%w: %s", payment.ErrEmailDeliveryFailed, email)
	}
	m.logger.Info("invoice emailed", zap.String("invoice", inv.InvoiceNumber), zap.String("email", email))
	return nil
}

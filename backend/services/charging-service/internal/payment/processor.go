package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Processor is the simulated payment gateway used for wallet top-ups.
type Processor struct {
	sim *Simulator
	now func() time.Time
}

// NewProcessor wraps a simulator.
func NewProcessor(sim *Simulator, now func() time.Time) *Processor {
	if now == nil {
		now = time.Now
	}
	return &Processor{sim: sim, now: now}
}

// Collect charges amount with the given method and returns the gateway reference.
func (p *Processor) Collect(ctx context.Context, amount float64, method string) (string, error) {
	ok, err := p.sim.Attempt(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s %.2f", ErrPaymentFailed, method, amount)
	}
	return Reference(p.now()), nil
}

// Reference builds a gateway-style reference such as REFLQ2J8K3Z042.
func Reference(now time.Time) string {
	return fmt.Sprintf("REF%s%03d", strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)), rand.IntN(1000))
}

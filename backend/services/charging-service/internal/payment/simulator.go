// Package payment simulates the external collaborators the dashboard talks to: the payment
// gateway and the mail relay. Each attempt waits a fixed delay and then succeeds or fails
// once; nothing is retried.
package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var (
	// ErrPaymentFailed is returned when the simulated gateway declines a payment.
	ErrPaymentFailed = errors.New("payment: payment failed, please try again")
	// ErrEmailDeliveryFailed is returned when the simulated mail relay rejects a message.
	ErrEmailDeliveryFailed = errors.New("payment: email delivery failed")
)

// Simulator decides the outcome of one simulated remote call.
type Simulator struct {
	failureRate float64
	delay       time.Duration
	random      func() float64
}

// NewSimulator returns a simulator failing with probability failureRate after delay.
// random defaults to math/rand/v2 when nil.
func NewSimulator(failureRate float64, delay time.Duration, random func() float64) *Simulator {
	if random == nil {
		random = rand.Float64
	}
	if failureRate < 0 {
		failureRate = 0
	}
	return &Simulator{failureRate: failureRate, delay: delay, random: random}
}

// Attempt waits for the configured delay and reports whether the call succeeded.
func (s *Simulator) Attempt(ctx context.Context) (bool, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return s.random() >= s.failureRate, nil
}

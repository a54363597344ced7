// Package payment provides checkout.Authorizer implementations: an in-process
// simulator and a client for the payment-service.
package payment

import (
	"context"
	"time"

	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
)

// Test card endings with a fixed outcome. Every other card is approved.
const (
	DeclineSuffix      = "0002"
	InsufficientSuffix = "9995"
)

// Decide applies the demo gateway rules to a card's last four digits.
func Decide(last4 string) (reason string, ok bool) {
	switch last4 {
	case DeclineSuffix:
		return "card declined", false
	case InsufficientSuffix:
		return "insufficient funds", false
	}
	return "", true
}

// Simulated authorizes in process after Delay.
type Simulated struct {
	Delay time.Duration
}

func (s Simulated) Authorize(ctx context.Context, req checkout.AuthorizationRequest) error {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	if reason, ok := Decide(req.Card.Last4()); !ok {
		return &checkout.PaymentError{Reason: reason, Err: checkout.ErrPaymentDeclined}
	}
	return nil
}

package checkout

import (
	"errors"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
)

// Step is the checkout wizard position.
type Step string

const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

func (s Step) String() string {
	return string(s)
}

func (s Step) IsValid() bool {
	switch s {
	case StepShipping, StepPayment, StepConfirmation:
		return true
	}
	return false
}

// CanTransitionTo reports whether target is reachable from s in one move.
// Payment may go back to Shipping; nothing skips a step and Confirmation is
// terminal.
func (s Step) CanTransitionTo(target Step) bool {
	switch s {
	case StepShipping:
		return target == StepPayment
	case StepPayment:
		return target == StepConfirmation || target == StepShipping
	default:
		return false
	}
}

func (s Step) IsTerminal() bool {
	return s == StepConfirmation
}

// State is the full checkout wizard value. Payment keeps only a redacted
// copy of the card form.
type State struct {
	Step       Step         `json:"step"`
	Shipping   ShippingForm `json:"shipping"`
	Payment    PaymentForm  `json:"payment"`
	Processing bool         `json:"is_processing"`
	OrderID    string       `json:"order_id,omitempty"`
}

type Event interface {
	eventName() string
}

type SubmitShipping struct{ Form ShippingForm }

type GoBack struct{}

type BeginPayment struct{ Form PaymentForm }

type PaymentSucceeded struct{ OrderID string }

type PaymentFailed struct{ Err error }

func (SubmitShipping) eventName() string   { return "submit_shipping" }
func (GoBack) eventName() string           { return "go_back" }
func (BeginPayment) eventName() string     { return "begin_payment" }
func (PaymentSucceeded) eventName() string { return "payment_succeeded" }
func (PaymentFailed) eventName() string    { return "payment_failed" }

// Start opens a checkout on the Shipping step. An empty cart cannot be
// checked out.
func Start(snap cart.Snapshot) (State, error) {
	if snap.Empty() {
		return State{}, ErrEmptyCart
	}
	return State{Step: StepShipping}, nil
}

// Transition applies ev to s. It never mutates its input. On error the
// returned state is the one the caller should keep: s itself, except for
// PaymentFailed where the processing flag is cleared.
func Transition(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case SubmitShipping:
		if s.Step != StepShipping {
			return s, invalid(s, ev)
		}
		if m := e.Form.Missing(); len(m) > 0 {
			return s, &ValidationError{Step: StepShipping, Missing: m}
		}
		next := s
		next.Shipping = e.Form
		next.Step = StepPayment
		return next, nil

	case GoBack:
		if s.Step != StepPayment || s.Processing {
			return s, invalid(s, ev)
		}
		next := s
		next.Step = StepShipping
		return next, nil

	case BeginPayment:
		if s.Step != StepPayment {
			return s, invalid(s, ev)
		}
		if s.Processing {
			return s, ErrPaymentInProgress
		}
		if m := e.Form.Missing(); len(m) > 0 {
			return s, &ValidationError{Step: StepPayment, Missing: m}
		}
		next := s
		next.Payment = e.Form.redacted()
		next.Processing = true
		return next, nil

	case PaymentSucceeded:
		if s.Step != StepPayment || !s.Processing || e.OrderID == "" {
			return s, invalid(s, ev)
		}
		next := s
		next.Processing = false
		next.OrderID = e.OrderID
		next.Step = StepConfirmation
		return next, nil

	case PaymentFailed:
		if s.Step != StepPayment || !s.Processing {
			return s, invalid(s, ev)
		}
		next := s
		next.Processing = false
		return next, asPaymentError(e.Err)

	default:
		return s, invalid(s, ev)
	}
}

func invalid(s State, ev Event) error {
	name := "unknown"
	if ev != nil {
		name = ev.eventName()
	}
	return &TransitionError{From: s.Step, Event: name}
}

func asPaymentError(err error) *PaymentError {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	if err == nil {
		return &PaymentError{Err: ErrPaymentDeclined}
	}
	return &PaymentError{Err: err}
}

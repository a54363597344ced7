package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrPaymentInProgress = errors.New("payment is already being processed")
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrAbandoned         = errors.New("checkout was abandoned")
	ErrPaymentDeclined   = errors.New("payment declined")
)

// ValidationError lists the required fields a step is missing. The step
// does not advance; the shopper can correct the input and retry.
type ValidationError struct {
	Step    Step
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s details incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}

// PaymentError is a failed authorization. The sequencer stays on Payment.
type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Reason != "" {
		return "payment failed: " + e.Reason
	}
	if e.Err != nil {
		return "payment failed: " + e.Err.Error()
	}
	return "payment failed"
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

type TransitionError struct {
	From  Step
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s not allowed during %s", ErrInvalidTransition, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

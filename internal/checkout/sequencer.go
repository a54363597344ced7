package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

type AuthorizationRequest struct {
	// Reference is stable for one checkout session, so a gateway can
	// refuse to charge the same session twice.
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Email     string
	Card      PaymentForm
}

// Authorizer performs the payment call. Implementations must return
// promptly once ctx is cancelled.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizationRequest) error
}

type AuthorizerFunc func(ctx context.Context, req AuthorizationRequest) error

func (f AuthorizerFunc) Authorize(ctx context.Context, req AuthorizationRequest) error {
	return f(ctx, req)
}

// ConfirmationSink receives every confirmed order, e.g. order history or a
// confirmation mailer. Sink failures are logged; the order stays confirmed.
type ConfirmationSink interface {
	OrderConfirmed(ctx context.Context, c Confirmation) error
}

// Observer outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation_error"
	OutcomePayment    = "payment_error"
	OutcomeInProgress = "in_progress"
	OutcomeInvalid    = "invalid"
	OutcomeAbandoned  = "abandoned"
)

type Observer interface {
	OnCheckoutTransition(from, to Step, outcome string)
	OnPaymentAuthorization(elapsed time.Duration, err error)
}

type Option func(*Sequencer)

func WithRules(r pricing.Rules) Option {
	return func(s *Sequencer) { s.rules = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

func WithOrderIDs(gen func() string) Option {
	return func(s *Sequencer) { s.newOrderID = gen }
}

func WithSinks(sinks ...ConfirmationSink) Option {
	return func(s *Sequencer) { s.sinks = append(s.sinks, sinks...) }
}

func WithObserver(o Observer) Option {
	return func(s *Sequencer) { s.observer = o }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

func WithPaymentTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.paymentTimeout = d }
}

func WithSessionID(id string) Option {
	return func(s *Sequencer) { s.sessionID = id }
}

// Sequencer drives one checkout session over a cart. It reads the cart and
// clears it exactly once, when payment succeeds.
type Sequencer struct {
	cart           *cart.Store
	auth           Authorizer
	rules          pricing.Rules
	now            func() time.Time
	newOrderID     func() string
	sinks          []ConfirmationSink
	observer       Observer
	logger         *logging.Logger
	paymentTimeout time.Duration
	sessionID      string
	reference      string

	mu           sync.Mutex
	state        State
	cancel       context.CancelFunc
	abandoned    bool
	confirmation *Confirmation
}

// New starts a checkout on the Shipping step. It fails with ErrEmptyCart
// when there is nothing to buy.
func New(c *cart.Store, auth Authorizer, opts ...Option) (*Sequencer, error) {
	if c == nil || auth == nil {
		return nil, errors.New("checkout: cart and authorizer are required")
	}
	s := &Sequencer{
		cart:       c,
		auth:       auth,
		rules:      pricing.DefaultRules(),
		now:        time.Now,
		newOrderID: NewOrderID,
		logger:     logging.NewNop(),
		reference:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	st, err := Start(c.Snapshot())
	if err != nil {
		s.logger.Log(logging.Fields{SessionID: s.sessionID, Step: "checkout_start", Status: "empty_cart"})
		return nil, err
	}
	s.state = st
	s.logger.Log(logging.Fields{SessionID: s.sessionID, Step: "checkout_start", Status: "shipping"})
	return s, nil
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) Reference() string {
	return s.reference
}

func (s *Sequencer) Confirmation() (Confirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmation == nil {
		return Confirmation{}, false
	}
	return *s.confirmation, true
}

// Totals prices the live cart, or the purchased cart once confirmed.
func (s *Sequencer) Totals() pricing.Result {
	s.mu.Lock()
	conf := s.confirmation
	s.mu.Unlock()
	if conf != nil {
		return conf.Pricing
	}
	return pricing.Quote(s.cart.Snapshot(), s.rules)
}

func (s *Sequencer) SubmitShipping(form ShippingForm) error {
	_, err := s.apply(SubmitShipping{Form: form})
	return err
}

func (s *Sequencer) Back() error {
	_, err := s.apply(GoBack{})
	return err
}

func (s *Sequencer) apply(ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return s.state, ErrAbandoned
	}
	from := s.state.Step
	next, err := Transition(s.state, ev)
	s.state = next
	s.observe(from, next.Step, err)
	return next, err
}

// SubmitPayment validates the card form, authorizes the order total and, on
// success, takes the purchased lines out of the cart and returns the
// confirmation. Items added while the authorization runs stay in the cart. While a call is in
// flight any further submission fails with ErrPaymentInProgress.
func (s *Sequencer) SubmitPayment(ctx context.Context, form PaymentForm) (*Confirmation, error) {
	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		return nil, ErrAbandoned
	}
	from := s.state.Step
	next, err := Transition(s.state, BeginPayment{Form: form})
	if err != nil {
		s.observe(from, from, err)
		s.mu.Unlock()
		return nil, err
	}
	snap := s.cart.Snapshot()
	if snap.Empty() {
		s.observe(from, from, ErrEmptyCart)
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	s.state = next

	totals := pricing.Quote(snap, s.rules)
	var (
		payCtx context.Context
		cancel context.CancelFunc
	)
	if s.paymentTimeout > 0 {
		payCtx, cancel = context.WithTimeout(ctx, s.paymentTimeout)
	} else {
		payCtx, cancel = context.WithCancel(ctx)
	}
	s.cancel = cancel
	req := AuthorizationRequest{
		Reference: s.reference,
		Amount:    money.Round2(totals.Total),
		Currency:  money.Currency,
		Email:     s.state.Shipping.Email,
		Card:      form,
	}
	s.mu.Unlock()

	start := s.now()
	authErr := s.auth.Authorize(payCtx, req)
	cancel()
	elapsed := s.now().Sub(start)
	if s.observer != nil {
		s.observer.OnPaymentAuthorization(elapsed, authErr)
	}

	s.mu.Lock()
	s.cancel = nil
	if s.abandoned {
		s.mu.Unlock()
		s.logger.Log(logging.Fields{SessionID: s.sessionID, Step: "payment", Status: "abandoned", DurationMS: elapsed.Milliseconds()})
		return nil, ErrAbandoned
	}

	if authErr != nil {
		var perr error
		s.state, perr = Transition(s.state, PaymentFailed{Err: authErr})
		s.observe(StepPayment, s.state.Step, perr)
		s.mu.Unlock()
		s.logger.Log(logging.Fields{SessionID: s.sessionID, Step: "payment", Status: "failed", DurationMS: elapsed.Milliseconds(), Err: authErr})
		return nil, perr
	}

	orderID := s.newOrderID()
	done, err := Transition(s.state, PaymentSucceeded{OrderID: orderID})
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("complete payment: %w", err)
	}
	s.state = done
	s.cart.Settle(snap)
	conf := newConfirmation(done, snap, totals, s.now(), form.Last4())
	s.confirmation = &conf
	s.observe(StepPayment, StepConfirmation, nil)
	s.mu.Unlock()

	s.logger.Log(logging.Fields{SessionID: s.sessionID, OrderID: orderID, Step: "payment", Status: "confirmed", DurationMS: elapsed.Milliseconds()})
	s.deliver(ctx, conf)
	return &conf, nil
}

// Abandon cancels an in-flight authorization and retires the session. A
// payment result arriving afterwards is discarded without touching the cart.
func (s *Sequencer) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned || s.state.Step == StepConfirmation {
		return
	}
	s.abandoned = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.observer != nil {
		s.observer.OnCheckoutTransition(s.state.Step, s.state.Step, OutcomeAbandoned)
	}
	s.logger.Log(logging.Fields{SessionID: s.sessionID, Step: string(s.state.Step), Status: "abandoned"})
}

func (s *Sequencer) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

func (s *Sequencer) deliver(ctx context.Context, conf Confirmation) {
	ctx = context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		if err := sink.OrderConfirmed(ctx, conf); err != nil {
			s.logger.Log(logging.Fields{SessionID: s.sessionID, OrderID: conf.OrderID, Step: "confirmation_sink", Status: "failed", Err: err})
		}
	}
}

func (s *Sequencer) observe(from, to Step, err error) {
	if s.observer == nil {
		return
	}
	s.observer.OnCheckoutTransition(from, to, outcomeOf(err))
}

func outcomeOf(err error) string {
	var (
		verr *ValidationError
		perr *PaymentError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &verr):
		return OutcomeValidation
	case errors.As(err, &perr):
		return OutcomePayment
	case errors.Is(err, ErrPaymentInProgress):
		return OutcomeInProgress
	case errors.Is(err, ErrAbandoned):
		return OutcomeAbandoned
	default:
		return OutcomeInvalid
	}
}

// NewOrderID returns ids like LF-20261019-3F2A9C1B.
func NewOrderID() string {
	return orderIDAt(time.Now())
}

func orderIDAt(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("LF-%s-%s", t.UTC().Format("20060102"), suffix)
}

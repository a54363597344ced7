// Package storefront is the shared application context: one Shop per
// shopper session, owning the cart, the wishlist, the auth gateway and at
// most one checkout.
package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/wishlist"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
)

var (
	ErrNotInWishlist = errors.New("product is not in the wishlist")
	ErrNoCheckout    = errors.New("no checkout in progress")
)

// Deps are shared by every Shop.
type Deps struct {
	Rules            pricing.Rules
	Authorizer       checkout.Authorizer
	Sinks            []checkout.ConfirmationSink
	CartObserver     cart.Observer
	CheckoutObserver checkout.Observer
	Logger           *logging.Logger
	PaymentTimeout   time.Duration
}

type Shop struct {
	ID       string
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Session  session.Gateway

	deps Deps
	now  func() time.Time

	mu       sync.Mutex
	checkout *checkout.Sequencer
	lastSeen time.Time
}

func NewShop(id string, gw session.Gateway, deps Deps) *Shop {
	if gw == nil {
		gw = session.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	var cartOpts []cart.Option
	if deps.CartObserver != nil {
		cartOpts = append(cartOpts, cart.WithObserver(deps.CartObserver))
	}
	return &Shop{
		ID:       id,
		Cart:     cart.NewStore(cartOpts...),
		Wishlist: wishlist.NewStore(),
		Session:  gw,
		deps:     deps,
		now:      time.Now,
		lastSeen: time.Now(),
	}
}

// Totals prices the cart as it is now.
func (s *Shop) Totals() pricing.Result {
	return pricing.Quote(s.Cart.Snapshot(), s.deps.Rules)
}

func (s *Shop) Rules() pricing.Rules {
	return s.deps.Rules
}

// BeginCheckout returns the checkout in progress or starts a new one. An
// empty cart yields checkout.ErrEmptyCart and the caller should send the
// shopper back to the catalog.
func (s *Shop) BeginCheckout(ctx context.Context) (*checkout.Sequencer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq := s.checkout; seq != nil && !seq.Abandoned() && !seq.State().Step.IsTerminal() {
		return seq, nil
	}

	opts := []checkout.Option{
		checkout.WithRules(s.deps.Rules),
		checkout.WithLogger(s.deps.Logger),
		checkout.WithSessionID(s.ID),
		checkout.WithSinks(s.deps.Sinks...),
	}
	if s.deps.CheckoutObserver != nil {
		opts = append(opts, checkout.WithObserver(s.deps.CheckoutObserver))
	}
	if s.deps.PaymentTimeout > 0 {
		opts = append(opts, checkout.WithPaymentTimeout(s.deps.PaymentTimeout))
	}
	seq, err := checkout.New(s.Cart, s.deps.Authorizer, opts...)
	if err != nil {
		return nil, err
	}
	s.checkout = seq
	return seq, nil
}

// Checkout returns the current or most recently finished checkout.
func (s *Shop) Checkout() (*checkout.Sequencer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil || s.checkout.Abandoned() {
		return nil, ErrNoCheckout
	}
	return s.checkout, nil
}

// AbandonCheckout leaves the checkout flow. The cart is untouched.
func (s *Shop) AbandonCheckout() {
	s.mu.Lock()
	seq := s.checkout
	s.checkout = nil
	s.mu.Unlock()
	if seq != nil {
		seq.Abandon()
	}
}

// MoveToCart adds one unit of a saved product to the cart. Whether the
// product also leaves the wishlist is the caller's explicit choice.
func (s *Shop) MoveToCart(productID string, v cart.Variant, removeFromWishlist bool) error {
	it, ok := s.Wishlist.Get(productID)
	if !ok {
		return ErrNotInWishlist
	}
	line := cart.LineItem{
		ProductID: cart.ProductID(it.ProductID),
		Variant:   v,
		Name:      it.Name,
		UnitPrice: it.Price,
		Image:     it.Image,
		Category:  it.Category,
	}
	if err := s.Cart.AddItem(line, 1); err != nil {
		return err
	}
	if removeFromWishlist {
		s.Wishlist.Remove(productID)
	}
	return nil
}

func (s *Shop) IsAuthenticated(ctx context.Context) bool {
	return session.Authenticated(ctx, s.Session)
}

func (s *Shop) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Shop) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Close abandons any checkout and releases the auth gateway.
func (s *Shop) Close() {
	s.AbandonCheckout()
	if c, ok := s.Session.(interface{ Close() }); ok {
		c.Close()
	}
}

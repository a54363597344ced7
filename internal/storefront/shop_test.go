package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/catalog"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/payment"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
)

func testDeps(store orders.Store) Deps {
	return Deps{
		Rules:      pricing.DefaultRules(),
		Authorizer: payment.Simulated{},
		Sinks:      []checkout.ConfirmationSink{orders.Recorder{Store: store}},
	}
}

func addProduct(t *testing.T, s *Shop, id string, qty int) {
	t.Helper()
	p, err := catalog.Default().Get(id)
	require.NoError(t, err)
	li, err := p.LineItem(p.DefaultVariant())
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddItem(li, qty))
}

var shipping = checkout.ShippingForm{
	FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
	Address: "12 Analytical Row", City: "London", PostalCode: "N1 9GU",
}

var card = checkout.PaymentForm{CardNumber: "4242424242424242", Expiry: "12/29", CVV: "123", NameOnCard: "Ada Lovelace"}

func TestBeginCheckoutEmptyCart(t *testing.T) {
	s := NewShop("s1", nil, testDeps(orders.NewMemory()))
	_, err := s.BeginCheckout(context.Background())
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	_, err = s.Checkout()
	assert.ErrorIs(t, err, ErrNoCheckout)
}

func TestFullCheckoutThroughShop(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemory()
	s := NewShop("s1", nil, testDeps(store))
	addProduct(t, s, "silk-scarf", 1)

	assert.True(t, s.Totals().Total.Equal(decimal.RequireFromString("53.1792")))

	seq, err := s.BeginCheckout(ctx)
	require.NoError(t, err)
	again, err := s.BeginCheckout(ctx)
	require.NoError(t, err)
	assert.Same(t, seq, again, "one active checkout per shop")

	require.NoError(t, seq.SubmitShipping(shipping))
	conf, err := seq.SubmitPayment(ctx, card)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Cart.Len())
	assert.True(t, s.Totals().Total.Equal(decimal.RequireFromString("9.99")), "empty cart still pays flat shipping in the quote")

	saved, err := store.Get(ctx, conf.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(5318), saved.TotalCents)

	cur, err := s.Checkout()
	require.NoError(t, err)
	assert.Equal(t, checkout.StepConfirmation, cur.State().Step)

	_, err = s.BeginCheckout(ctx)
	assert.ErrorIs(t, err, checkout.ErrEmptyCart, "a finished checkout is not reused")
}

func TestAbandonCheckoutKeepsCart(t *testing.T) {
	ctx := context.Background()
	deps := testDeps(orders.NewMemory())
	deps.Authorizer = payment.Simulated{Delay: time.Minute}
	s := NewShop("s1", nil, deps)
	addProduct(t, s, "oxford-shirt", 2)

	seq, err := s.BeginCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, seq.SubmitShipping(shipping))

	done := make(chan error, 1)
	go func() {
		_, err := seq.SubmitPayment(ctx, card)
		done <- err
	}()
	require.Eventually(t, func() bool { return seq.State().Processing }, 5*time.Second, 5*time.Millisecond)

	s.AbandonCheckout()
	assert.ErrorIs(t, <-done, checkout.ErrAbandoned)
	assert.Equal(t, 2, s.Cart.Count())
	_, err = s.Checkout()
	assert.ErrorIs(t, err, ErrNoCheckout)

	fresh, err := s.BeginCheckout(ctx)
	require.NoError(t, err)
	assert.NotSame(t, seq, fresh)
	assert.Equal(t, checkout.StepShipping, fresh.State().Step)
}

func TestMoveToCart(t *testing.T) {
	s := NewShop("s1", nil, testDeps(orders.NewMemory()))
	p, err := catalog.Default().Get("leather-tote")
	require.NoError(t, err)
	s.Wishlist.Add(p.WishlistItem())

	assert.ErrorIs(t, s.MoveToCart("nope", cart.Variant{}, true), ErrNotInWishlist)

	require.NoError(t, s.MoveToCart("leather-tote", cart.Variant{Color: "Tan"}, false))
	assert.True(t, s.Wishlist.Contains("leather-tote"), "kept when the caller asks to keep it")
	assert.Equal(t, 1, s.Cart.Count())

	require.NoError(t, s.MoveToCart("leather-tote", cart.Variant{Color: "Tan"}, true))
	assert.False(t, s.Wishlist.Contains("leather-tote"))
	assert.Equal(t, 2, s.Cart.Count(), "same variant increments the line")
	assert.Equal(t, 1, s.Cart.Len())
}

func TestIsAuthenticated(t *testing.T) {
	ctx := context.Background()
	p, err := session.NewProvider([]byte("0123456789abcdef0123"), session.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	client := p.Client()
	s := NewShop("s1", client, testDeps(orders.NewMemory()))

	assert.False(t, s.IsAuthenticated(ctx))
	_, err = client.SignUp(ctx, "ada@example.com", "long-enough", session.Profile{})
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated(ctx))

	assert.False(t, NewShop("s2", nil, testDeps(orders.NewMemory())).IsAuthenticated(ctx))
}

func TestRegistry(t *testing.T) {
	created := 0
	r := NewRegistry(func(id string) *Shop {
		created++
		return NewShop(id, nil, testDeps(orders.NewMemory()))
	})

	s1, id := r.Get("")
	require.NotEmpty(t, id)
	s2, id2 := r.Get(id)
	assert.Same(t, s1, s2)
	assert.Equal(t, id, id2)
	assert.Equal(t, 1, created)

	_, ok := r.Lookup("unknown")
	assert.False(t, ok)

	s3, id3 := r.Get("client-chosen")
	assert.NotEqual(t, "client-chosen", id3, "unknown ids are never adopted")
	assert.NotEmpty(t, id3)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, r.Len())
	_, ok = r.Lookup("client-chosen")
	assert.False(t, ok)
	s4, _ := r.Get(id3)
	assert.Same(t, s3, s4)

	r.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	assert.Equal(t, 2, r.Sweep(2*time.Hour))
	assert.Equal(t, 0, r.Len())
}

package main

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/klugumair/Luxuryfashion-sub000/internal/catalog"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/payment"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/storefront"
)

func newTestModel(t *testing.T) (model, *orders.Memory) {
	t.Helper()
	provider, err := session.NewProvider([]byte("test-secret-0123456789"), session.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	store := orders.NewMemory()
	client := provider.Client()
	shop := storefront.NewShop("cli", client, storefront.Deps{
		Rules:      pricing.DefaultRules(),
		Authorizer: payment.Simulated{},
		Sinks:      []checkout.ConfirmationSink{orders.Recorder{Store: store}},
	})
	t.Cleanup(shop.Close)
	return newModel(shop, catalog.Default(), store, client), store
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds keys through Update and runs any returned command inline,
// so payments complete before press returns.
func press(m model, keys ...tea.KeyMsg) model {
	for _, k := range keys {
		next, cmd := m.Update(k)
		m = next.(model)
		for cmd != nil {
			msg := cmd()
			if _, quit := msg.(tea.QuitMsg); quit {
				break
			}
			next, cmd = m.Update(msg)
			m = next.(model)
		}
	}
	return m
}

func typeText(m model, s string) model {
	for _, r := range s {
		if r == ' ' {
			m = press(m, tea.KeyMsg{Type: tea.KeySpace})
			continue
		}
		m = press(m, key(string(r)))
	}
	return m
}

func selectProduct(t *testing.T, m model, id string) model {
	t.Helper()
	for i, p := range m.products {
		if p.ID == id {
			m.cursor = i
			return m
		}
	}
	t.Fatalf("product %s not in catalog", id)
	return m
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func fillShipping(m model) model {
	for k, v := range map[string]string{
		"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
		"address": "12 Analytical Row", "city": "London", "postal_code": "N1 9GU",
	} {
		m.form.set(k, v)
	}
	return m
}

func fillCard(m model, number string) model {
	m.form.set("card_number", number)
	m.form.set("expiry", "12/29")
	m.form.set("cvv", "123")
	m.form.set("name_on_card", "Ada Lovelace")
	return m
}

func TestCatalogAddAndSave(t *testing.T) {
	m, _ := newTestModel(t)
	m = selectProduct(t, m, "silk-scarf")

	m = press(m, key("a"), key("a"), key("w"))
	assert.Equal(t, 2, m.shop.Cart.Count())
	assert.True(t, m.shop.Wishlist.Contains("silk-scarf"))
	assert.Contains(t, m.View(), "cart: 2")

	m = press(m, key("w"))
	assert.False(t, m.shop.Wishlist.Contains("silk-scarf"))
}

func TestCartQuantityKeys(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(selectProduct(t, m, "silk-scarf"), key("a"), key("2"))
	require.Equal(t, screenCart, m.screen)

	m = press(m, key("+"), key("+"))
	assert.Equal(t, 3, m.shop.Cart.Count())
	m = press(m, key("-"), key("-"), key("-"))
	assert.Equal(t, 1, m.shop.Cart.Count(), "quantity floors at one")
	assert.Contains(t, m.View(), "more for free shipping")

	m = press(m, key("d"))
	assert.Zero(t, m.shop.Cart.Len())
	assert.Contains(t, m.View(), "Your cart is empty")
}

func TestWishlistMoveToCart(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(selectProduct(t, m, "silk-scarf"), key("w"), key("3"))

	m = press(m, key("m"))
	assert.Equal(t, 1, m.shop.Cart.Count())
	assert.True(t, m.shop.Wishlist.Contains("silk-scarf"))

	m = press(m, key("M"))
	assert.Equal(t, 2, m.shop.Cart.Count())
	assert.False(t, m.shop.Wishlist.Contains("silk-scarf"))
}

func TestCheckoutNeedsItems(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, key("4"))
	assert.Equal(t, screenCatalog, m.screen)
	assert.Contains(t, m.status, "empty")
	assert.Nil(t, m.seq)
}

func TestCheckoutHappyPath(t *testing.T) {
	m, store := newTestModel(t)
	m = press(selectProduct(t, m, "silk-scarf"), key("a"), key("2"), key("c"))
	require.Equal(t, screenCheckout, m.screen)
	require.NotNil(t, m.seq)

	m = press(m, enter)
	assert.Equal(t, checkout.StepShipping, m.seq.State().Step)
	assert.Contains(t, m.status, "first_name")

	m = press(fillShipping(m), enter)
	require.Equal(t, checkout.StepPayment, m.seq.State().Step)

	m = press(m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = typeText(m, "4242 4242 4242 4242")
	assert.Equal(t, "4242 4242 4242 4242", m.form.value("card_number"))
	m = fillCard(m, m.form.value("card_number"))
	m = press(m, enter)

	require.Equal(t, checkout.StepConfirmation, m.seq.State().Step)
	assert.False(t, m.busy)
	assert.Zero(t, m.shop.Cart.Len())
	conf, ok := m.seq.Confirmation()
	require.True(t, ok)
	assert.Contains(t, m.status, conf.OrderID)

	view := m.View()
	assert.Contains(t, view, "Thank you, Ada!")
	assert.Contains(t, view, "Card ending in 4242")
	assert.Contains(t, view, "$53.18")

	saved, err := store.Get(context.Background(), conf.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(5318), saved.TotalCents)

	m = press(m, key("n"))
	assert.Equal(t, screenCatalog, m.screen)
	assert.Nil(t, m.seq)
}

func TestCheckoutDeclineBackAndAbandon(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(selectProduct(t, m, "silk-scarf"), key("a"), key("4"))
	m = press(fillShipping(m), enter)
	m = press(fillCard(m, "4000000000000002"), enter)

	assert.Equal(t, checkout.StepPayment, m.seq.State().Step)
	assert.Contains(t, m.status, "Payment failed")
	assert.Equal(t, 1, m.shop.Cart.Count())

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlB})
	assert.Equal(t, checkout.StepShipping, m.seq.State().Step)
	assert.Equal(t, "Ada", m.form.value("first_name"), "shipping details survive going back")

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, screenCart, m.screen)
	assert.Nil(t, m.seq)
	assert.Equal(t, 1, m.shop.Cart.Count())
	_, err := m.shop.Checkout()
	assert.ErrorIs(t, err, storefront.ErrNoCheckout)
}

func TestPaymentResultFromAbandonedCheckoutIsDropped(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(selectProduct(t, m, "silk-scarf"), key("a"), key("4"))
	stale := m.seq
	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})

	next, _ := m.Update(paymentResult{seq: stale, err: checkout.ErrAbandoned})
	assert.Equal(t, m.status, next.(model).status)
}

func TestAccountSignUpAndOut(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, key("5"))
	require.True(t, m.editing())
	assert.Contains(t, m.View(), "Sign in to see your orders")

	m = typeText(m, "ada@example.com")
	m = press(m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(m, "wrong")
	m = press(m, enter)
	assert.Nil(t, m.signedIn)
	assert.Equal(t, "Email or password is incorrect", m.status)

	m.account.set("password", "correct-horse")
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.NotNil(t, m.signedIn)
	assert.Equal(t, "ada@example.com", m.signedIn.Email)
	assert.Contains(t, m.View(), "No orders yet")

	m = press(m, key("o"))
	assert.Nil(t, m.signedIn)
	assert.True(t, m.editing())
}

func TestQuitAbandonsCheckout(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(selectProduct(t, m, "silk-scarf"), key("a"), key("4"))
	seq := m.seq

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, seq.Abandoned())
}

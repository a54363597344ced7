package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/catalog"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/storefront"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

type screen int

const (
	screenCatalog screen = iota
	screenCart
	screenWishlist
	screenCheckout
	screenAccount
)

var screenNames = []string{"Catalog", "Cart", "Wishlist", "Checkout", "Account"}

// paymentResult carries the sequencer it belongs to so a result from an
// abandoned checkout is recognised and dropped.
type paymentResult struct {
	seq  *checkout.Sequencer
	conf *checkout.Confirmation
	err  error
}

type sessionChanged struct {
	s *session.Session
}

type model struct {
	shop    *storefront.Shop
	catalog *catalog.Catalog
	orders  orders.Store
	client  *session.Client

	screen   screen
	cursor   int
	products []catalog.Product

	seq  *checkout.Sequencer
	form form

	account  form
	signedIn *session.Session

	status string
	busy   bool
}

func newModel(shop *storefront.Shop, cat *catalog.Catalog, store orders.Store, client *session.Client) model {
	return model{
		shop:     shop,
		catalog:  cat,
		orders:   store,
		client:   client,
		products: cat.All(),
		account:  credentialsForm(),
		status:   "Welcome to Luxuryfashion",
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.onKey(msg)
	case paymentResult:
		return m.onPayment(msg), nil
	case sessionChanged:
		m.signedIn = msg.s
		if msg.s == nil {
			m.status = "Signed out"
		} else {
			m.status = "Signed in as " + msg.s.Email
		}
	}
	return m, nil
}

// editing is true while keystrokes belong to a form.
func (m model) editing() bool {
	switch m.screen {
	case screenCheckout:
		return m.seq != nil && m.seq.State().Step != checkout.StepConfirmation
	case screenAccount:
		return m.signedIn == nil
	}
	return false
}

func (m model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.shop.AbandonCheckout()
		return m, tea.Quit
	}
	if m.editing() {
		if m.screen == screenCheckout {
			return m.onCheckoutKey(msg)
		}
		return m.onAccountFormKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4", "5":
		m.show(screen(msg.String()[0] - '1'))
		return m, nil
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
		return m, nil
	}

	switch m.screen {
	case screenCatalog:
		m.onCatalogKey(msg.String())
	case screenCart:
		m.onCartKey(msg.String())
	case screenWishlist:
		m.onWishlistKey(msg.String())
	case screenCheckout:
		if msg.String() == "n" {
			m.seq = nil
			m.show(screenCatalog)
		}
	case screenAccount:
		if msg.String() == "o" {
			if err := m.client.SignOut(context.Background()); err != nil {
				m.status = "Sign out failed: " + err.Error()
			}
			m.signedIn = nil
		}
	}
	return m, nil
}

func (m *model) show(s screen) {
	m.screen = s
	m.cursor = 0
	if s == screenCheckout && m.seq == nil {
		m.beginCheckout()
	}
}

func (m model) rows() int {
	switch m.screen {
	case screenCatalog:
		return len(m.products)
	case screenCart:
		return m.shop.Cart.Len()
	case screenWishlist:
		return m.shop.Wishlist.Len()
	}
	return 0
}

func (m *model) onCatalogKey(key string) {
	if m.cursor >= len(m.products) {
		return
	}
	p := m.products[m.cursor]
	switch key {
	case "enter", "a":
		line, err := p.LineItem(p.DefaultVariant())
		if err == nil {
			err = m.shop.Cart.AddItem(line, 1)
		}
		if err != nil {
			m.status = "Could not add: " + err.Error()
			return
		}
		m.status = fmt.Sprintf("Added %s to your cart", p.Name)
	case "w":
		if m.shop.Wishlist.Toggle(p.WishlistItem()) {
			m.status = fmt.Sprintf("Saved %s to your wishlist", p.Name)
		} else {
			m.status = fmt.Sprintf("Removed %s from your wishlist", p.Name)
		}
	}
}

func (m *model) onCartKey(key string) {
	if key == "c" {
		m.show(screenCheckout)
		return
	}
	items := m.shop.Cart.Items()
	if m.cursor >= len(items) {
		return
	}
	li := items[m.cursor]
	switch key {
	case "+", "=":
		m.shop.Cart.UpdateQuantity(li.ProductID, li.Quantity+1)
	case "-":
		m.shop.Cart.UpdateQuantity(li.ProductID, li.Quantity-1)
	case "d", "x":
		m.shop.Cart.RemoveItem(li.ProductID)
		m.status = fmt.Sprintf("Removed %s", li.Name)
		if m.cursor > 0 && m.cursor >= m.shop.Cart.Len() {
			m.cursor--
		}
	}
}

func (m *model) onWishlistKey(key string) {
	items := m.shop.Wishlist.Items()
	if m.cursor >= len(items) {
		return
	}
	it := items[m.cursor]
	var v cart.Variant
	if p, err := m.catalog.Get(it.ProductID); err == nil {
		v = p.DefaultVariant()
	}
	switch key {
	case "m", "M":
		if err := m.shop.MoveToCart(it.ProductID, v, key == "M"); err != nil {
			m.status = "Could not move: " + err.Error()
			return
		}
		m.status = fmt.Sprintf("Moved %s to your cart", it.Name)
	case "d", "x":
		m.shop.Wishlist.Remove(it.ProductID)
		m.status = fmt.Sprintf("Removed %s from your wishlist", it.Name)
	}
	if m.cursor > 0 && m.cursor >= m.shop.Wishlist.Len() {
		m.cursor--
	}
}

func (m *model) beginCheckout() {
	seq, err := m.shop.BeginCheckout(context.Background())
	if errors.Is(err, checkout.ErrEmptyCart) {
		m.screen = screenCatalog
		m.status = "Your cart is empty. Pick something from the catalog first."
		return
	}
	if err != nil {
		m.screen = screenCart
		m.status = "Checkout unavailable: " + err.Error()
		return
	}
	m.seq = seq
	m.form = shippingForm()
	m.fillShipping(seq.State().Shipping)
	m.status = "Shipping details"
}

func (m *model) fillShipping(s checkout.ShippingForm) {
	if s.Email == "" && m.signedIn != nil {
		s.Email = m.signedIn.Email
	}
	for k, v := range map[string]string{
		"first_name": s.FirstName, "last_name": s.LastName, "email": s.Email, "address": s.Address,
		"city": s.City, "postal_code": s.PostalCode, "country": s.Country, "phone": s.Phone,
	} {
		m.form.set(k, v)
	}
}

func (m model) onCheckoutKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.shop.AbandonCheckout()
		m.seq, m.busy = nil, false
		m.screen = screenCart
		m.status = "Checkout abandoned. Your cart is unchanged."
		return m, nil
	}
	if m.busy {
		m.status = "Payment is being processed. Esc abandons the checkout."
		return m, nil
	}

	step := m.seq.State().Step
	switch msg.Type {
	case tea.KeyCtrlB:
		if err := m.seq.Back(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.form = shippingForm()
		m.fillShipping(m.seq.State().Shipping)
		m.status = "Shipping details"
		return m, nil
	case tea.KeyEnter:
		if step == checkout.StepShipping {
			m.submitShipping()
			return m, nil
		}
		return m.submitPayment()
	}
	m.form.update(msg)
	return m, nil
}

func (m *model) submitShipping() {
	f := checkout.ShippingForm{
		FirstName:  m.form.value("first_name"),
		LastName:   m.form.value("last_name"),
		Email:      m.form.value("email"),
		Address:    m.form.value("address"),
		City:       m.form.value("city"),
		PostalCode: m.form.value("postal_code"),
		Country:    m.form.value("country"),
		Phone:      m.form.value("phone"),
	}
	if err := m.seq.SubmitShipping(f); err != nil {
		m.status = describe(err)
		return
	}
	m.form = paymentForm()
	m.status = "Payment details"
}

func (m model) submitPayment() (tea.Model, tea.Cmd) {
	f := checkout.PaymentForm{
		CardNumber: m.form.value("card_number"),
		Expiry:     m.form.value("expiry"),
		CVV:        m.form.value("cvv"),
		NameOnCard: m.form.value("name_on_card"),
	}
	if missing := f.Missing(); len(missing) > 0 {
		m.status = describe(&checkout.ValidationError{Step: checkout.StepPayment, Missing: missing})
		return m, nil
	}
	m.busy = true
	m.status = "Processing payment..."
	seq := m.seq
	return m, func() tea.Msg {
		conf, err := seq.SubmitPayment(context.Background(), f)
		return paymentResult{seq: seq, conf: conf, err: err}
	}
}

func (m model) onPayment(r paymentResult) model {
	if r.seq != m.seq {
		return m
	}
	m.busy = false
	if r.err != nil {
		m.status = describe(r.err)
		return m
	}
	m.form = form{}
	m.status = "Order " + r.conf.OrderID + " confirmed"
	return m
}

func (m model) onAccountFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	email, password := m.account.value("email"), m.account.value("password")
	switch msg.Type {
	case tea.KeyEsc:
		m.show(screenCatalog)
		return m, nil
	case tea.KeyEnter:
		s, err := m.client.SignIn(ctx, email, password)
		if err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.signedIn, m.account = s, credentialsForm()
		m.status = "Signed in as " + s.Email
		return m, nil
	case tea.KeyCtrlN:
		s, err := m.client.SignUp(ctx, email, password, session.Profile{DisplayName: m.account.value("display_name")})
		if err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.account = credentialsForm()
		if s == nil {
			m.status = "Account created. Check your inbox to verify your email, then sign in."
			return m, nil
		}
		m.signedIn = s
		m.status = "Welcome, " + s.Email
		return m, nil
	}
	m.account.update(msg)
	return m, nil
}

func describe(err error) string {
	var (
		verr *checkout.ValidationError
		perr *checkout.PaymentError
	)
	switch {
	case errors.As(err, &verr):
		return "Please complete: " + strings.Join(verr.Missing, ", ")
	case errors.Is(err, checkout.ErrAbandoned):
		return "Checkout abandoned"
	case errors.As(err, &perr):
		return "Payment failed: " + strings.TrimPrefix(perr.Error(), "payment failed: ") + ". Try another card."
	case errors.Is(err, checkout.ErrPaymentInProgress):
		return "Payment is already being processed"
	case errors.Is(err, session.ErrInvalidCredentials):
		return "Email or password is incorrect"
	case errors.Is(err, session.ErrVerificationPending):
		return "Verify your email before signing in"
	}
	return err.Error()
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "LUXURYFASHION")
	for i, name := range screenNames {
		if screen(i) == m.screen {
			fmt.Fprintf(b, "[%d %s] ", i+1, name)
		} else {
			fmt.Fprintf(b, " %d %s  ", i+1, name)
		}
	}
	fmt.Fprintf(b, "  cart: %d\n\n", m.shop.Cart.Count())

	switch m.screen {
	case screenCatalog:
		m.viewCatalog(b)
	case screenCart:
		m.viewCart(b)
	case screenWishlist:
		m.viewWishlist(b)
	case screenCheckout:
		m.viewCheckout(b)
	case screenAccount:
		m.viewAccount(b)
	}

	fmt.Fprintf(b, "\nStatus: %s\n", m.status)
	fmt.Fprintln(b, m.help())
	return b.String()
}

func marker(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}

func (m model) viewCatalog(b *strings.Builder) {
	for i, p := range m.products {
		saved := " "
		if m.shop.Wishlist.Contains(p.ID) {
			saved = "♥"
		}
		fmt.Fprintf(b, " %s %s %-28s %-12s %10s\n", marker(i == m.cursor), saved, p.Name, p.Category, money.Format(p.Price))
	}
}

func (m model) viewTotals(b *strings.Builder, r pricing.Result) {
	fmt.Fprintf(b, "\n   Subtotal %12s\n", money.Format(r.Subtotal))
	if r.FreeShipping() {
		fmt.Fprintf(b, "   Shipping %12s\n", "FREE")
	} else {
		fmt.Fprintf(b, "   Shipping %12s\n", money.Format(r.ShippingCost))
	}
	fmt.Fprintf(b, "   Tax      %12s\n", money.Format(r.Tax))
	fmt.Fprintf(b, "   Total    %12s\n", money.Format(r.Total))
}

func (m model) viewCart(b *strings.Builder) {
	items := m.shop.Cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(b, "   Your cart is empty.")
		return
	}
	for i, li := range items {
		variant := strings.Trim(li.Variant.Size+" / "+li.Variant.Color, " /")
		fmt.Fprintf(b, " %s %-28s %-14s x%-3d %10s\n", marker(i == m.cursor), li.Name, variant, li.Quantity, money.Format(li.LineTotal()))
	}
	totals := m.shop.Totals()
	m.viewTotals(b, totals)
	if rest := pricing.RemainingForFreeShipping(totals.Subtotal, m.shop.Rules()); rest.IsPositive() {
		fmt.Fprintf(b, "   Add %s more for free shipping\n", money.Format(rest))
	}
}

func (m model) viewWishlist(b *strings.Builder) {
	items := m.shop.Wishlist.Items()
	if len(items) == 0 {
		fmt.Fprintln(b, "   Nothing saved yet.")
		return
	}
	for i, it := range items {
		fmt.Fprintf(b, " %s %-28s %10s\n", marker(i == m.cursor), it.Name, money.Format(it.Price))
	}
}

func (m model) viewCheckout(b *strings.Builder) {
	if m.seq == nil {
		fmt.Fprintln(b, "   No checkout in progress.")
		return
	}
	st := m.seq.State()
	for _, s := range []checkout.Step{checkout.StepShipping, checkout.StepPayment, checkout.StepConfirmation} {
		fmt.Fprintf(b, " %s %s", marker(s == st.Step), s)
	}
	fmt.Fprintln(b)
	fmt.Fprintln(b)

	if conf, ok := m.seq.Confirmation(); ok {
		fmt.Fprintf(b, "   Thank you, %s!\n", conf.ShipTo.FirstName)
		fmt.Fprintf(b, "   Order %s\n", conf.OrderID)
		fmt.Fprintf(b, "   %d item(s) shipping to %s, %s\n", conf.ItemCount, conf.ShipTo.Address, conf.ShipTo.City)
		fmt.Fprintf(b, "   Card ending in %s\n", conf.CardLast4)
		m.viewTotals(b, conf.Pricing)
		return
	}
	m.form.view(b)
	m.viewTotals(b, m.seq.Totals())
	if st.Processing {
		fmt.Fprintln(b, "\n   Processing payment...")
	}
}

func (m model) viewAccount(b *strings.Builder) {
	if m.signedIn == nil {
		fmt.Fprintln(b, "   Sign in to see your orders.")
		fmt.Fprintln(b)
		m.account.view(b)
		return
	}
	name := m.signedIn.DisplayName
	if name == "" {
		name = m.signedIn.Email
	}
	fmt.Fprintf(b, "   %s\n   %s\n\n", name, m.signedIn.Email)
	list, err := m.orders.ListByEmail(context.Background(), m.signedIn.Email, 10)
	if err != nil {
		fmt.Fprintf(b, "   Could not load orders: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(b, "   No orders yet.")
		return
	}
	for _, o := range list {
		fmt.Fprintf(b, "   %s  %d item(s)  %10s  %s\n", o.ID, o.ItemCount(), money.Format(money.FromCents(o.TotalCents)), o.Status)
	}
}

func (m model) help() string {
	switch {
	case m.screen == screenCheckout && m.editing():
		return "tab/up/down move  enter continue  ctrl+b back  esc abandon  ctrl+c quit"
	case m.screen == screenAccount && m.editing():
		return "tab move  enter sign in  ctrl+n create account  esc back  ctrl+c quit"
	case m.screen == screenCatalog:
		return "1-5 screens  up/down select  a add to cart  w wishlist  q quit"
	case m.screen == screenCart:
		return "1-5 screens  +/- quantity  d remove  c checkout  q quit"
	case m.screen == screenWishlist:
		return "1-5 screens  m move to cart  M move and remove  d remove  q quit"
	case m.screen == screenCheckout:
		return "n keep shopping  1-5 screens  q quit"
	}
	return "o sign out  1-5 screens  q quit"
}

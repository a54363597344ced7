package checkout

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
)

type checkoutFeature struct {
	cart    *cart.Store
	seq     *Sequencer
	decline bool
	conf    *Confirmation
	err     error
}

func (f *checkoutFeature) reset() {
	f.cart = cart.NewStore()
	f.seq = nil
	f.decline = false
	f.conf = nil
	f.err = nil
}

func (f *checkoutFeature) aCartHolding(qty int, name, price string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	id := cart.ProductID(strings.ToLower(strings.ReplaceAll(name, " ", "-")))
	return f.cart.AddItem(cart.LineItem{ProductID: id, Name: name, UnitPrice: p}, qty)
}

func (f *checkoutFeature) sequencer() (*Sequencer, error) {
	if f.seq != nil {
		return f.seq, nil
	}
	auth := AuthorizerFunc(func(context.Context, AuthorizationRequest) error {
		if f.decline {
			f.decline = false
			return &PaymentError{Reason: "card declined"}
		}
		return nil
	})
	seq, err := New(f.cart, auth)
	if err != nil {
		return nil, err
	}
	f.seq = seq
	return seq, nil
}

func (f *checkoutFeature) submitsCompleteShipping() error {
	seq, err := f.sequencer()
	if err != nil {
		return err
	}
	f.err = seq.SubmitShipping(validShipping())
	return f.err
}

func (f *checkoutFeature) submitsShippingWithout(field string) error {
	seq, err := f.sequencer()
	if err != nil {
		return err
	}
	form := validShipping()
	switch field {
	case "email":
		form.Email = ""
	case "city":
		form.City = ""
	default:
		return fmt.Errorf("unsupported field %q", field)
	}
	f.err = seq.SubmitShipping(form)
	return nil
}

func (f *checkoutFeature) gatewayDeclines() error {
	f.decline = true
	return nil
}

func (f *checkoutFeature) paysWithCard(number string) error {
	card := validCard()
	card.CardNumber = number
	f.conf, f.err = f.seq.SubmitPayment(context.Background(), card)
	return nil
}

func (f *checkoutFeature) goesBack() error {
	return f.seq.Back()
}

func (f *checkoutFeature) checkoutIsOnStep(step string) error {
	if got := f.seq.State().Step; string(got) != step {
		return fmt.Errorf("expected step %s, got %s", step, got)
	}
	return nil
}

func (f *checkoutFeature) orderTotalIs(total string) error {
	want := decimal.RequireFromString(total)
	if f.conf == nil {
		return fmt.Errorf("no confirmation: %v", f.err)
	}
	if !f.conf.Total.Equal(want) {
		return fmt.Errorf("expected total %s, got %s", want, f.conf.Total)
	}
	return nil
}

func (f *checkoutFeature) shippingChargeIs(amount string) error {
	want := decimal.RequireFromString(amount)
	if f.conf == nil {
		return fmt.Errorf("no confirmation: %v", f.err)
	}
	if !f.conf.Pricing.ShippingCost.Equal(want) {
		return fmt.Errorf("expected shipping %s, got %s", want, f.conf.Pricing.ShippingCost)
	}
	return nil
}

func (f *checkoutFeature) orderIDStartsWith(prefix string) error {
	if id := f.seq.State().OrderID; !strings.HasPrefix(id, prefix) {
		return fmt.Errorf("order id %q lacks prefix %q", id, prefix)
	}
	return nil
}

func (f *checkoutFeature) cartIsEmpty() error {
	if n := f.cart.Len(); n != 0 {
		return fmt.Errorf("cart still has %d lines", n)
	}
	return nil
}

func (f *checkoutFeature) cartStillHolds(n int) error {
	if got := f.cart.Count(); got != n {
		return fmt.Errorf("expected %d items, got %d", n, got)
	}
	return nil
}

func (f *checkoutFeature) errorListsMissing(field string) error {
	verr, ok := f.err.(*ValidationError)
	if !ok {
		return fmt.Errorf("expected validation error, got %v", f.err)
	}
	if !slices.Contains(verr.Missing, field) {
		return fmt.Errorf("%q not in %v", field, verr.Missing)
	}
	return nil
}

func (f *checkoutFeature) paymentFailed() error {
	if _, ok := f.err.(*PaymentError); !ok {
		return fmt.Errorf("expected payment error, got %v", f.err)
	}
	return nil
}

func (f *checkoutFeature) savedEmailIs(email string) error {
	if got := f.seq.State().Shipping.Email; got != email {
		return fmt.Errorf("expected email %q, got %q", email, got)
	}
	return nil
}

func initializeCheckoutScenario(ctx *godog.ScenarioContext) {
	f := &checkoutFeature{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})

	ctx.Step(`^a cart holding (\d+) "([^"]*)" at ([\d.]+)$`, f.aCartHolding)

	ctx.Step(`^the shopper submits complete shipping details$`, f.submitsCompleteShipping)
	ctx.Step(`^the shopper submits shipping details without "([^"]*)"$`, f.submitsShippingWithout)
	ctx.Step(`^the gateway declines the next payment$`, f.gatewayDeclines)
	ctx.Step(`^the shopper pays with card "([^"]*)"$`, f.paysWithCard)
	ctx.Step(`^the shopper goes back$`, f.goesBack)

	ctx.Step(`^checkout is on the "([^"]*)" step$`, f.checkoutIsOnStep)
	ctx.Step(`^the order total is ([\d.]+)$`, f.orderTotalIs)
	ctx.Step(`^the shipping charge is ([\d.]+)$`, f.shippingChargeIs)
	ctx.Step(`^the order id starts with "([^"]*)"$`, f.orderIDStartsWith)
	ctx.Step(`^the cart is empty$`, f.cartIsEmpty)
	ctx.Step(`^the cart still holds (\d+) items?$`, f.cartStillHolds)
	ctx.Step(`^the error lists missing field "([^"]*)"$`, f.errorListsMissing)
	ctx.Step(`^the payment failed$`, f.paymentFailed)
	ctx.Step(`^the saved email is "([^"]*)"$`, f.savedEmailIs)
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCheckoutScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

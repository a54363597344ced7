// Package pricing turns a cart subtotal into shipping, tax and a grand total.
// The figures are illustrative storefront rules, not a tax engine.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
)

// Rules configures the engine. Shipping is waived only when the subtotal is
// strictly above FreeShippingThreshold; tax applies to the subtotal alone.
type Rules struct {
	FreeShippingThreshold decimal.Decimal `yaml:"free_shipping_threshold" json:"free_shipping_threshold"`
	FlatShippingCost      decimal.Decimal `yaml:"flat_shipping_cost" json:"flat_shipping_cost"`
	TaxRate               decimal.Decimal `yaml:"tax_rate" json:"tax_rate"`
}

func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(75),
		FlatShippingCost:      decimal.RequireFromString("9.99"),
		TaxRate:               decimal.RequireFromString("0.08"),
	}
}

func (r Rules) Validate() error {
	if r.FreeShippingThreshold.IsNegative() {
		return errors.New("pricing.free_shipping_threshold must not be negative")
	}
	if r.FlatShippingCost.IsNegative() {
		return errors.New("pricing.flat_shipping_cost must not be negative")
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("pricing.tax_rate must be between 0 and 1")
	}
	return nil
}

// Result carries unrounded amounts; round only when displaying.
type Result struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
}

func (r Result) FreeShipping() bool {
	return r.ShippingCost.IsZero()
}

// ComputeTotals expects a non-negative subtotal.
func ComputeTotals(subtotal decimal.Decimal, rules Rules) Result {
	shipping := rules.FlatShippingCost
	if subtotal.GreaterThan(rules.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(rules.TaxRate)
	return Result{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
	}
}

func Quote(snap cart.Snapshot, rules Rules) Result {
	return ComputeTotals(snap.Subtotal(), rules)
}

// RemainingForFreeShipping is how much more the shopper must add before
// shipping is waived. Zero once the threshold is exceeded.
func RemainingForFreeShipping(subtotal decimal.Decimal, rules Rules) decimal.Decimal {
	if subtotal.GreaterThan(rules.FreeShippingThreshold) {
		return decimal.Zero
	}
	return rules.FreeShippingThreshold.Sub(subtotal).Add(decimal.New(1, -2))
}

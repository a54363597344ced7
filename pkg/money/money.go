// Package money holds the price and quantity helpers shared by the cart,
// wishlist, pricing and checkout packages. Amounts are decimals end to end;
// rounding to cents happens only when an amount is rendered.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Currency       = "USD"
	CurrencySymbol = "$"

	// MinQuantity is the smallest quantity a cart line may hold.
	MinQuantity = 1
)

var ErrInvalidAmount = errors.New("invalid amount")

// Zero is returned for empty sums.
var Zero = decimal.Zero

func New(units int64, cents int64) decimal.Decimal {
	return decimal.New(units*100+cents, -2)
}

// MustParse is meant for constants in catalogs and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse accepts "39.99", "$39.99" and " 39 ".
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, CurrencySymbol)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders d as a display price, e.g. "$53.18".
func Format(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Neg().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}

// Cents converts to minor units, rounding first.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// ClampQuantity bounds q to [min, max]. A max of zero or less leaves the
// upper end open.
func ClampQuantity(q, min, max int) int {
	if q < min {
		return min
	}
	if max > 0 && q > max {
		return max
	}
	return q
}

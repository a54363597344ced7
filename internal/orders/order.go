// Package orders records confirmed checkouts and announces them.
package orders

import (
	"errors"
	"time"

	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

var (
	ErrDuplicateOrder = errors.New("order already recorded")
	ErrNotFound       = errors.New("order not found")
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusNotified  Status = "NOTIFIED"
)

type Item struct {
	ProductID      string
	Name           string
	Size           string
	Color          string
	Quantity       int
	UnitPriceCents int64
}

// Order is the persisted form of a checkout confirmation. Amounts are in
// cents, rounded once when the order is recorded.
type Order struct {
	ID            string
	Email         string
	Name          string
	Status        Status
	SubtotalCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
	CardLast4     string
	Items         []Item

	CreatedAt time.Time
}

func FromConfirmation(c checkout.Confirmation) Order {
	o := Order{
		ID:            c.OrderID,
		Email:         c.Email,
		Name:          c.ShipTo.FullName(),
		Status:        StatusConfirmed,
		SubtotalCents: money.Cents(c.Pricing.Subtotal),
		ShippingCents: money.Cents(c.Pricing.ShippingCost),
		TaxCents:      money.Cents(c.Pricing.Tax),
		TotalCents:    money.Cents(c.Total),
		CardLast4:     c.CardLast4,
		CreatedAt:     c.Timestamp,
	}
	for _, li := range c.Items {
		o.Items = append(o.Items, Item{
			ProductID:      string(li.ProductID),
			Name:           li.Name,
			Size:           li.Variant.Size,
			Color:          li.Variant.Color,
			Quantity:       li.Quantity,
			UnitPriceCents: money.Cents(li.UnitPrice),
		})
	}
	return o
}

func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Confirmed is the event payload announcing o.
func (o Order) Confirmed() contracts.OrderConfirmed {
	ev := contracts.OrderConfirmed{
		OrderID:       o.ID,
		Email:         o.Email,
		Name:          o.Name,
		ItemCount:     o.ItemCount(),
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TaxCents:      o.TaxCents,
		TotalCents:    o.TotalCents,
		CardLast4:     o.CardLast4,
		ConfirmedAt:   o.CreatedAt,
	}
	for _, it := range o.Items {
		ev.Lines = append(ev.Lines, contracts.OrderLine{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Size:           it.Size,
			Color:          it.Color,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return ev
}

package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

var (
	ErrMissingProductID = errors.New("product id is required")
	ErrInvalidPrice     = errors.New("unit price must be greater than zero")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
)

type ProductID string

// Variant is the size/color pair that, together with the product id,
// identifies a cart line.
type Variant struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

type Key struct {
	ProductID ProductID
	Size      string
	Color     string
}

type LineItem struct {
	ProductID ProductID       `json:"product_id"`
	Variant   Variant         `json:"variant"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (li LineItem) Key() Key {
	return Key{ProductID: li.ProductID, Size: li.Variant.Size, Color: li.Variant.Color}
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) validate(quantity int) error {
	if strings.TrimSpace(string(li.ProductID)) == "" {
		return ErrMissingProductID
	}
	if !li.UnitPrice.IsPositive() {
		return ErrInvalidPrice
	}
	if quantity < money.MinQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

// Snapshot is a point-in-time copy of the cart lines in insertion order.
// Count and Subtotal are computed from Items on every call.
type Snapshot struct {
	Items []LineItem `json:"items"`
}

func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

func (s Snapshot) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s Snapshot) Subtotal() decimal.Decimal {
	sum := money.Zero
	for _, it := range s.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
)

// Confirmation is the record shown on the final step and handed to sinks.
// It is built from the cart as it was when payment started, so it lists
// only what was paid for.
type Confirmation struct {
	OrderID   string          `json:"order_id"`
	Email     string          `json:"email"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	Items     []cart.LineItem `json:"items"`
	Pricing   pricing.Result  `json:"pricing"`
	ShipTo    ShippingForm    `json:"ship_to"`
	CardLast4 string          `json:"card_last4,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newConfirmation(st State, snap cart.Snapshot, totals pricing.Result, at time.Time, last4 string) Confirmation {
	items := make([]cart.LineItem, len(snap.Items))
	copy(items, snap.Items)
	return Confirmation{
		OrderID:   st.OrderID,
		Email:     st.Shipping.Email,
		Total:     totals.Total,
		ItemCount: snap.Count(),
		Items:     items,
		Pricing:   totals,
		ShipTo:    st.Shipping,
		CardLast4: last4,
		Timestamp: at.UTC(),
	}
}

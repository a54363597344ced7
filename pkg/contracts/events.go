package contracts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string          `json:"event_id"`
	OrderID   string          `json:"order_id"`
	SessionID string          `json:"session_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh event id.
func NewEvent(typ, orderID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
		Type:      typ,
		Payload:   data,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

const (
	EventOrderConfirmed      = "order.confirmed"
	EventPaymentAuthorized   = "payment.authorized"
	EventPaymentDeclined     = "payment.declined"
	EventNotificationEmitted = "notification.emitted"
)

// Topics.
const (
	TopicOrders        = "storefront.orders"
	TopicNotifications = "storefront.notifications"
)

// OrderConfirmed is the payload of EventOrderConfirmed. Amounts are cents.
type OrderConfirmed struct {
	OrderID       string      `json:"order_id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	ItemCount     int         `json:"item_count"`
	Lines         []OrderLine `json:"lines"`
	SubtotalCents int64       `json:"subtotal_cents"`
	ShippingCents int64       `json:"shipping_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	CardLast4     string      `json:"card_last4,omitempty"`
	ConfirmedAt   time.Time   `json:"confirmed_at"`
}

type OrderLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// NotificationEmitted is the payload of EventNotificationEmitted.
type NotificationEmitted struct {
	OrderID string `json:"order_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

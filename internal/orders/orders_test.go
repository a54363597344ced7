package orders

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/outbox"
)

func confirmation(id string) checkout.Confirmation {
	items := []cart.LineItem{
		{ProductID: "silk-scarf", Name: "Silk Scarf", UnitPrice: decimal.RequireFromString("39.99"), Quantity: 1, Variant: cart.Variant{Color: "Ivory"}},
	}
	return checkout.Confirmation{
		OrderID:   id,
		Email:     "ada@example.com",
		ItemCount: 1,
		Items:     items,
		Pricing:   pricing.ComputeTotals(decimal.RequireFromString("39.99"), pricing.DefaultRules()),
		ShipTo:    checkout.ShippingForm{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		CardLast4: "4242",
		Timestamp: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestFromConfirmationRoundsOnce(t *testing.T) {
	o := FromConfirmation(confirmation("LF-1"))
	assert.Equal(t, int64(3999), o.SubtotalCents)
	assert.Equal(t, int64(999), o.ShippingCents)
	assert.Equal(t, int64(320), o.TaxCents)
	assert.Equal(t, int64(5318), o.TotalCents)
	assert.Equal(t, "Ada Lovelace", o.Name)
	assert.Equal(t, 1, o.ItemCount())

	ev := o.Confirmed()
	require.Len(t, ev.Lines, 1)
	assert.Equal(t, "Ivory", ev.Lines[0].Color)
	assert.Equal(t, int64(3999), ev.Lines[0].UnitPriceCents)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := Recorder{Store: m}

	require.NoError(t, rec.OrderConfirmed(ctx, confirmation("LF-1")))
	require.NoError(t, rec.OrderConfirmed(ctx, confirmation("LF-2")))
	assert.ErrorIs(t, rec.OrderConfirmed(ctx, confirmation("LF-1")), ErrDuplicateOrder)

	got, err := m.ListByEmail(ctx, "ADA@example.com", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LF-2", got[0].ID, "newest first")

	got, err = m.ListByEmail(ctx, "ada@example.com", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = m.Get(ctx, "LF-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

type capturePublisher struct {
	topic, key string
	value      []byte
}

func (c *capturePublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	c.topic, c.key, c.value = topic, key, value
	return nil
}

func TestAnnouncer(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, Announcer{Publisher: pub}.OrderConfirmed(context.Background(), confirmation("LF-9")))

	assert.Equal(t, contracts.TopicOrders, pub.topic)
	assert.Equal(t, "LF-9", pub.key)

	var ev contracts.Event
	require.NoError(t, json.Unmarshal(pub.value, &ev))
	assert.Equal(t, contracts.EventOrderConfirmed, ev.Type)
	var payload contracts.OrderConfirmed
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, int64(5318), payload.TotalCents)
}

// TestPGStore runs against a real database when ORDERS_TEST_DATABASE_URL is set.
func TestPGStore(t *testing.T) {
	dsn := os.Getenv("ORDERS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ORDERS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))

	id := "LF-TEST-" + time.Now().UTC().Format("150405.000000")
	s := NewPGStore(pool)
	require.NoError(t, s.Save(ctx, FromConfirmation(confirmation(id))))
	assert.ErrorIs(t, s.Save(ctx, FromConfirmation(confirmation(id))), ErrDuplicateOrder)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5318), got.TotalCents)
	require.Len(t, got.Items, 1)

	pending, err := outbox.FetchPending(ctx, pool, 1000)
	require.NoError(t, err)
	found := false
	for _, rec := range pending {
		if rec.Key == id {
			found = true
		}
	}
	assert.True(t, found, "order.confirmed queued in the outbox")

	require.NoError(t, s.MarkNotified(ctx, id))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, got.Status)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

// inbox remembers which events already produced a notice.
type inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string, n contracts.NotificationEmitted) error
}

type memInbox struct {
	mu   sync.Mutex
	seen map[string]contracts.NotificationEmitted
}

func newMemInbox() *memInbox {
	return &memInbox{seen: map[string]contracts.NotificationEmitted{}}
}

func (m *memInbox) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[id]
	return ok, nil
}

func (m *memInbox) Record(_ context.Context, id string, n contracts.NotificationEmitted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[id] = n
	return nil
}

const inboxSchema = `CREATE TABLE IF NOT EXISTS notifications (
	event_id   TEXT PRIMARY KEY,
	order_id   TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type pgInbox struct {
	pool *pgxpool.Pool
}

func (p pgInbox) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, inboxSchema)
	return err
}

func (p pgInbox) Seen(ctx context.Context, id string) (bool, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE event_id=$1`, id).Scan(&n)
	return n > 0, err
}

func (p pgInbox) Record(ctx context.Context, id string, n contracts.NotificationEmitted) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO notifications(event_id, order_id, recipient, subject, body)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (event_id) DO NOTHING`, id, n.OrderID, n.To, n.Subject, n.Body)
	return err
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, payload any) error
}

type orderMarker interface {
	MarkNotified(ctx context.Context, id string) error
}

// notifier turns order.confirmed events into confirmation notices. Delivery
// is at least once; the inbox keeps a redelivered event from producing a
// second notice.
type notifier struct {
	inbox     inbox
	publisher jsonPublisher
	orders    orderMarker
	log       *logging.Logger
	handled   *prometheus.CounterVec
}

func newNotifier(in inbox, reg prometheus.Registerer, log *logging.Logger) *notifier {
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "notification",
		Name:      "events_total",
		Help:      "Consumed events by result.",
	}, []string{"result"})
	reg.MustRegister(handled)
	return &notifier{inbox: in, log: log, handled: handled}
}

// Handle processes one message value. A returned error means the message
// should be retried.
func (n *notifier) Handle(ctx context.Context, value []byte) error {
	var ev contracts.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		n.handled.WithLabelValues("malformed").Inc()
		n.log.Log(logging.Fields{Step: "decode", Status: "skipped", Err: err})
		return nil
	}
	if ev.Type != contracts.EventOrderConfirmed || ev.EventID == "" {
		n.handled.WithLabelValues("ignored").Inc()
		return nil
	}
	seen, err := n.inbox.Seen(ctx, ev.EventID)
	if err != nil {
		return err
	}
	if seen {
		n.handled.WithLabelValues("duplicate").Inc()
		return nil
	}

	var oc contracts.OrderConfirmed
	if err := ev.Decode(&oc); err != nil {
		n.handled.WithLabelValues("malformed").Inc()
		n.log.Log(logging.Fields{EventID: ev.EventID, OrderID: ev.OrderID, Step: "decode", Status: "skipped", Err: err})
		return nil
	}
	notice := renderNotice(oc)

	if n.publisher != nil {
		out, err := contracts.NewEvent(contracts.EventNotificationEmitted, oc.OrderID, notice)
		if err != nil {
			return err
		}
		if err := n.publisher.PublishJSON(ctx, contracts.TopicNotifications, oc.OrderID, out); err != nil {
			return fmt.Errorf("publish notice: %w", err)
		}
	}
	if err := n.inbox.Record(ctx, ev.EventID, notice); err != nil {
		return err
	}
	if n.orders != nil {
		if err := n.orders.MarkNotified(ctx, oc.OrderID); err != nil {
			n.log.Log(logging.Fields{OrderID: oc.OrderID, Step: "mark_notified", Status: "failed", Err: err})
		}
	}
	n.handled.WithLabelValues("emitted").Inc()
	n.log.Log(logging.Fields{EventID: ev.EventID, OrderID: oc.OrderID, Step: "notification", Status: "emitted", Message: notice.Subject})
	return nil
}

func renderNotice(oc contracts.OrderConfirmed) contracts.NotificationEmitted {
	var b strings.Builder
	name := oc.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nThank you for your order %s.\n\n", name, oc.OrderID)
	for _, l := range oc.Lines {
		variant := strings.Trim(strings.Join([]string{l.Size, l.Color}, " / "), " /")
		if variant != "" {
			variant = " (" + variant + ")"
		}
		fmt.Fprintf(&b, "  %d x %s%s  %s\n", l.Quantity, l.Name, variant,
			money.Format(money.FromCents(l.UnitPriceCents*int64(l.Quantity))))
	}
	fmt.Fprintf(&b, "\nSubtotal  %s\n", money.Format(money.FromCents(oc.SubtotalCents)))
	if oc.ShippingCents == 0 {
		b.WriteString("Shipping  FREE\n")
	} else {
		fmt.Fprintf(&b, "Shipping  %s\n", money.Format(money.FromCents(oc.ShippingCents)))
	}
	fmt.Fprintf(&b, "Tax       %s\n", money.Format(money.FromCents(oc.TaxCents)))
	fmt.Fprintf(&b, "Total     %s\n", money.Format(money.FromCents(oc.TotalCents)))
	if oc.CardLast4 != "" {
		fmt.Fprintf(&b, "\nCharged to the card ending in %s.\n", oc.CardLast4)
	}
	return contracts.NotificationEmitted{
		OrderID: oc.OrderID,
		To:      oc.Email,
		Subject: fmt.Sprintf("Your Luxuryfashion order %s is confirmed", oc.OrderID),
		Body:    b.String(),
	}
}

package orders

import (
	"context"
	"encoding/json"

	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/outbox"
)

// Recorder saves every confirmation to a Store.
type Recorder struct {
	Store Store
}

func (r Recorder) OrderConfirmed(ctx context.Context, c checkout.Confirmation) error {
	return r.Store.Save(ctx, FromConfirmation(c))
}

// Announcer publishes order.confirmed straight to the broker. Use it when
// orders are not kept in Postgres; PGStore already queues the event.
type Announcer struct {
	Publisher outbox.Publisher
	Topic     string
}

func (a Announcer) OrderConfirmed(ctx context.Context, c checkout.Confirmation) error {
	o := FromConfirmation(c)
	ev, err := contracts.NewEvent(contracts.EventOrderConfirmed, o.ID, o.Confirmed())
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := a.Topic
	if topic == "" {
		topic = contracts.TopicOrders
	}
	return a.Publisher.Publish(ctx, topic, o.ID, data)
}

// LogSink writes one line per confirmed order.
type LogSink struct {
	Logger *logging.Logger
}

func (l LogSink) OrderConfirmed(_ context.Context, c checkout.Confirmation) error {
	l.Logger.Log(logging.Fields{
		OrderID: c.OrderID,
		Step:    "order_confirmed",
		Status:  string(StatusConfirmed),
		Message: "order confirmed",
	})
	return nil
}

var (
	_ checkout.ConfirmationSink = Recorder{}
	_ checkout.ConfirmationSink = Announcer{}
	_ checkout.ConfirmationSink = LogSink{}
	_ Store                     = (*Memory)(nil)
	_ Store                     = (*PGStore)(nil)
)

package outbox

import (
	"context"
	"time"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
)

type Source interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Relay moves pending outbox rows to the broker. Delivery is at least once:
// a row is marked sent only after the publish succeeded.
type Relay struct {
	Source    Source
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
	Logger    *logging.Logger
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.Logger.Log(logging.Fields{Step: "outbox_flush", Status: "failed", Err: err})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Flush publishes one batch in id order and stops at the first publish
// failure so ordering per key is kept.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	recs, err := r.Source.FetchPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range recs {
		if err := r.Publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			return sent, err
		}
		if err := r.Source.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
		r.Logger.Log(logging.Fields{EventID: rec.EventID, Step: "outbox_publish", Status: "sent"})
	}
	return sent, nil
}

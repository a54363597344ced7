package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

const retryDelay = 2 * time.Second

// consume handles messages in order. A message is committed only after the
// notifier accepted it; failures are retried until ctx is done.
func consume(ctx context.Context, r messageReader, n *notifier, log *logging.Logger) {
	defer r.Close()
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Log(logging.Fields{Step: "kafka_fetch", Status: "failed", Err: err})
			if !sleep(ctx, retryDelay) {
				return
			}
			continue
		}
		for {
			err := n.Handle(ctx, msg.Value)
			if err == nil {
				break
			}
			log.Log(logging.Fields{OrderID: string(msg.Key), Step: "notification", Status: "retry", Err: err})
			if !sleep(ctx, retryDelay) {
				return
			}
		}
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Log(logging.Fields{OrderID: string(msg.Key), Step: "kafka_commit", Status: "failed", Err: err})
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

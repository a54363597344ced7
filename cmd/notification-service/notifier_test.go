package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
)

type published struct {
	topic, key string
	payload    any
}

type fakePublisher struct {
	mu   sync.Mutex
	out  []published
	fail error
}

func (p *fakePublisher) PublishJSON(_ context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.out = append(p.out, published{topic, key, payload})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.out)
}

type marks struct {
	mu  sync.Mutex
	ids []string
}

func (m *marks) MarkNotified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
	return nil
}

func confirmedEvent(t *testing.T) []byte {
	t.Helper()
	ev, err := contracts.NewEvent(contracts.EventOrderConfirmed, "LF-20260101-ABCDEF12", contracts.OrderConfirmed{
		OrderID: "LF-20260101-ABCDEF12",
		Email:   "ada@example.com",
		Name:    "Ada Lovelace",
		Lines: []contracts.OrderLine{
			{ProductID: "silk-scarf", Name: "Silk Scarf", Color: "Ivory", Quantity: 1, UnitPriceCents: 3999},
		},
		ItemCount:     1,
		SubtotalCents: 3999,
		ShippingCents: 999,
		TaxCents:      320,
		TotalCents:    5318,
		CardLast4:     "4242",
	})
	require.NoError(t, err)
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func newTestNotifier() (*notifier, *fakePublisher, *marks) {
	n := newNotifier(newMemInbox(), prometheus.NewRegistry(), logging.NewNop())
	pub, m := &fakePublisher{}, &marks{}
	n.publisher, n.orders = pub, m
	return n, pub, m
}

func TestHandleEmitsOnce(t *testing.T) {
	n, pub, m := newTestNotifier()
	msg := confirmedEvent(t)

	require.NoError(t, n.Handle(context.Background(), msg))
	require.NoError(t, n.Handle(context.Background(), msg))

	require.Equal(t, 1, pub.count())
	assert.Equal(t, contracts.TopicNotifications, pub.out[0].topic)
	assert.Equal(t, "LF-20260101-ABCDEF12", pub.out[0].key)
	assert.Equal(t, []string{"LF-20260101-ABCDEF12"}, m.ids)
	assert.Equal(t, 1.0, testutil.ToFloat64(n.handled.WithLabelValues("emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(n.handled.WithLabelValues("duplicate")))
}

func TestHandleSkipsOtherEvents(t *testing.T) {
	n, pub, _ := newTestNotifier()

	require.NoError(t, n.Handle(context.Background(), []byte("not json")))
	other, err := json.Marshal(contracts.Event{EventID: "e1", Type: contracts.EventPaymentAuthorized})
	require.NoError(t, err)
	require.NoError(t, n.Handle(context.Background(), other))

	assert.Zero(t, pub.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(n.handled.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(n.handled.WithLabelValues("ignored")))
}

func TestHandlePublishFailureIsRetryable(t *testing.T) {
	n, pub, m := newTestNotifier()
	pub.fail = errors.New("broker down")
	msg := confirmedEvent(t)

	require.Error(t, n.Handle(context.Background(), msg))
	assert.Empty(t, m.ids)

	pub.fail = nil
	require.NoError(t, n.Handle(context.Background(), msg))
	assert.Equal(t, 1, pub.count(), "the event was not recorded as handled")
}

func TestRenderNotice(t *testing.T) {
	var oc contracts.OrderConfirmed
	var ev contracts.Event
	require.NoError(t, json.Unmarshal(confirmedEvent(t), &ev))
	require.NoError(t, ev.Decode(&oc))

	n := renderNotice(oc)
	assert.Equal(t, "ada@example.com", n.To)
	assert.Contains(t, n.Subject, "LF-20260101-ABCDEF12")
	assert.Contains(t, n.Body, "Hi Ada Lovelace")
	assert.Contains(t, n.Body, "1 x Silk Scarf (Ivory)  $39.99")
	assert.Contains(t, n.Body, "Shipping  $9.99")
	assert.Contains(t, n.Body, "Total     $53.18")
	assert.Contains(t, n.Body, "ending in 4242")

	oc.ShippingCents = 0
	assert.Contains(t, renderNotice(oc).Body, "Shipping  FREE")
}

type fakeReader struct {
	msgs      chan kafkago.Message
	mu        sync.Mutex
	committed []kafkago.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestConsumeCommitsHandledMessages(t *testing.T) {
	n, pub, _ := newTestNotifier()
	r := &fakeReader{msgs: make(chan kafkago.Message, 2)}
	r.msgs <- kafkago.Message{Key: []byte("LF-20260101-ABCDEF12"), Value: confirmedEvent(t)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consume(ctx, r, n, logging.NewNop())
		close(done)
	}()

	require.Eventually(t, func() bool { return r.commits() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, pub.count())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.True(t, r.closed)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/klugumair/Luxuryfashion-sub000/internal/payment"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/idempotency"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/metrics"
)

// operation is one authorization decision as it is written to the ledger.
type operation struct {
	Reference       string
	AuthorizationID string
	AmountCents     int64
	Currency        string
	CardLast4       string
	Status          string
	Reason          string
}

type ledger interface {
	Record(ctx context.Context, op operation) error
	Ping(ctx context.Context) error
}

type nopLedger struct{}

func (nopLedger) Record(context.Context, operation) error { return nil }
func (nopLedger) Ping(context.Context) error              { return nil }

const ledgerSchema = `CREATE TABLE IF NOT EXISTS payment_operations (
	id               BIGSERIAL PRIMARY KEY,
	reference        TEXT NOT NULL,
	authorization_id TEXT NOT NULL DEFAULT '',
	amount_cents     BIGINT NOT NULL,
	currency         TEXT NOT NULL,
	card_last4       TEXT NOT NULL,
	status           TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS payment_operations_reference_idx ON payment_operations (reference);`

type pgLedger struct {
	pool *pgxpool.Pool
}

func (l pgLedger) migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, ledgerSchema)
	return err
}

func (l pgLedger) Record(ctx context.Context, op operation) error {
	_, err := l.pool.Exec(ctx, `INSERT INTO payment_operations
		(reference, authorization_id, amount_cents, currency, card_last4, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		op.Reference, op.AuthorizationID, op.AmountCents, op.Currency, op.CardLast4, op.Status, op.Reason)
	return err
}

func (l pgLedger) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

type service struct {
	ledger  ledger
	log     *logging.Logger
	metrics *metrics.ServerMetrics
	replays *idempotency.Cache
	delay   time.Duration
	ready   func(ctx context.Context) error
}

func newService(l ledger, log *logging.Logger, m *metrics.ServerMetrics, delay, replayTTL time.Duration) *service {
	return &service{ledger: l, log: log, metrics: m, replays: idempotency.NewCache(replayTTL), delay: delay}
}

func (s *service) routes(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", metrics.HandlerFor(g))
	mux.HandleFunc("POST /payments/authorize", s.authorize)
	return mux
}

func (s *service) health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			s.metrics.Observe("health", "503", start)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	s.metrics.Observe("health", "200", start)
}

func validate(req contracts.AuthorizeRequest) error {
	switch {
	case strings.TrimSpace(req.Reference) == "":
		return fmt.Errorf("reference is required")
	case req.AmountCents <= 0:
		return fmt.Errorf("amount_cents must be > 0")
	case len(req.CardLast4) != 4:
		return fmt.Errorf("card_last4 must be 4 digits")
	}
	return nil
}

// authorize answers 200 authorized or 402 declined. A repeated
// Idempotency-Key gets the first answer back without a second decision.
func (s *service) authorize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := idempotency.Key(r)
	if resp, ok := s.replays.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replay", "true")
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
		s.metrics.Observe("authorize", strconv.Itoa(resp.Status), start)
		return
	}

	var req contracts.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		s.metrics.Observe("authorize", "400", start)
		return
	}
	if err := validate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		s.metrics.Observe("authorize", "400", start)
		return
	}

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-r.Context().Done():
			t.Stop()
			s.metrics.Observe("authorize", "499", start)
			return
		case <-t.C:
		}
	}

	status := http.StatusOK
	resp := contracts.AuthorizeResponse{Status: contracts.PaymentAuthorized, AuthorizationID: "AUTH-" + uuid.NewString()}
	if reason, ok := payment.Decide(req.CardLast4); !ok {
		status = http.StatusPaymentRequired
		resp = contracts.AuthorizeResponse{Status: contracts.PaymentDeclined, Reason: reason}
	}

	op := operation{
		Reference:       req.Reference,
		AuthorizationID: resp.AuthorizationID,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		CardLast4:       req.CardLast4,
		Status:          resp.Status,
		Reason:          resp.Reason,
	}
	if err := s.ledger.Record(r.Context(), op); err != nil {
		s.log.Log(logging.Fields{OrderID: req.Reference, Step: "ledger_write", Status: "failed", Err: err})
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "could not record the authorization"})
		s.metrics.Observe("authorize", "500", start)
		return
	}

	body, _ := json.Marshal(resp)
	s.replays.Put(key, idempotency.Response{Status: status, Body: body})
	s.log.Since(logging.Fields{OrderID: req.Reference, Step: "authorize", Status: resp.Status, Message: "payment " + resp.Status}, start)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	s.metrics.Observe("authorize", strconv.Itoa(status), start)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

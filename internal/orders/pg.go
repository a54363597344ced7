package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/outbox"
)

const schema = `CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	subtotal_cents BIGINT NOT NULL,
	shipping_cents BIGINT NOT NULL,
	tax_cents      BIGINT NOT NULL,
	total_cents    BIGINT NOT NULL,
	card_last4     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS orders_email_idx ON orders (lower(email), created_at DESC);
CREATE TABLE IF NOT EXISTS order_items (
	order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	line             INT NOT NULL,
	product_id       TEXT NOT NULL,
	name             TEXT NOT NULL,
	size             TEXT NOT NULL DEFAULT '',
	color            TEXT NOT NULL DEFAULT '',
	quantity         INT NOT NULL CHECK (quantity > 0),
	unit_price_cents BIGINT NOT NULL,
	PRIMARY KEY (order_id, line)
);`

// PGStore writes orders to Postgres. Each Save also queues an
// order.confirmed event in the outbox within the same transaction.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate creates the orders and outbox tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{schema, outbox.Schema} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PGStore) Save(ctx context.Context, o Order) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ev, err := contracts.NewEvent(contracts.EventOrderConfirmed, o.ID, o.Confirmed())
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO orders(id, email, name, status, subtotal_cents, shipping_cents, tax_cents, total_cents, card_last4, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.Email, o.Name, string(o.Status), o.SubtotalCents, o.ShippingCents, o.TaxCents, o.TotalCents, o.CardLast4, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
		}
		return err
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items(order_id, line, product_id, name, size, color, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, i, it.ProductID, it.Name, it.Size, it.Color, it.Quantity, it.UnitPriceCents,
		)
		if err != nil {
			return err
		}
	}

	if err := outbox.Insert(ctx, tx, ev.EventID, contracts.TopicOrders, o.ID, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, status, subtotal_cents, shipping_cents, tax_cents, total_cents, card_last4, created_at
		FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.Email, &o.Name, &status, &o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents, &o.CardLast4, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.Items, err = s.items(ctx, id)
	return o, err
}

func (s *PGStore) ListByEmail(ctx context.Context, email string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM orders WHERE lower(email)=$1 ORDER BY created_at DESC LIMIT $2`,
		strings.ToLower(strings.TrimSpace(email)), limit,
	)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// MarkNotified records that the confirmation notice went out.
func (s *PGStore) MarkNotified(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(StatusNotified))
	return err
}

func (s *PGStore) items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, name, size, color, quantity, unit_price_cents FROM order_items WHERE order_id=$1 ORDER BY line`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Size, &it.Color, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

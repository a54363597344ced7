package orders

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Store keeps confirmed orders for the account page.
type Store interface {
	Save(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	ListByEmail(ctx context.Context, email string, limit int) ([]Order, error)
}

// Memory is a Store for single-process runs and tests.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]Order
	order  []string
}

func NewMemory() *Memory {
	return &Memory{orders: map[string]Order{}}
}

func (m *Memory) Save(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	o.Items = slices.Clone(o.Items)
	m.orders[o.ID] = o
	m.order = append(m.order, o.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o, nil
}

// ListByEmail returns newest first.
func (m *Memory) ListByEmail(_ context.Context, email string, limit int) ([]Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for i := len(m.order) - 1; i >= 0; i-- {
		o := m.orders[m.order[i]]
		if strings.EqualFold(o.Email, email) {
			out = append(out, o)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Mutation names reported to an Observer.
const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpUpdate = "update_quantity"
	OpClear  = "clear"
	OpSettle = "settle"
)

// Observer is told about every mutation the store actually applied.
type Observer interface {
	OnCartMutation(op string)
}

type Option func(*Store)

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Store is the single source of truth for cart contents. Each method runs
// to completion under the store lock, so readers always see the result of
// the most recently applied mutation.
type Store struct {
	mu       sync.Mutex
	items    []LineItem
	observer Observer
}

func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem adds quantity units of item. A line with the same product, size
// and color has its quantity increased; otherwise a new line is appended.
// Invalid input is reported and leaves the cart unchanged.
func (s *Store) AddItem(item LineItem, quantity int) error {
	if err := item.validate(quantity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := item.Key()
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity += quantity
			s.notify(OpAdd)
			return nil
		}
	}
	item.Quantity = quantity
	s.items = append(s.items, item)
	s.notify(OpAdd)
	return nil
}

// RemoveItem drops every line of productID, whatever its variant.
func (s *Store) RemoveItem(productID ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := false
	for _, it := range s.items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	// zero the tail so dropped lines are not retained by the backing array
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = LineItem{}
	}
	s.items = kept
	if removed {
		s.notify(OpRemove)
	}
}

// UpdateQuantity sets the quantity of the lines of productID, never going
// below 1. Unknown ids are ignored.
func (s *Store) UpdateQuantity(productID ProductID, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity = quantity
			updated = true
		}
	}
	if updated {
		s.notify(OpUpdate)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.notify(OpClear)
}

// Settle takes the purchased lines out of the cart. Each line of purchased
// lowers the matching variant by its quantity and drops it at zero, so
// anything added after the snapshot was taken stays in the cart.
func (s *Store) Settle(purchased Snapshot) {
	bought := make(map[Key]int, len(purchased.Items))
	for _, it := range purchased.Items {
		bought[it.Key()] += it.Quantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, it := range s.items {
		if n := bought[it.Key()]; n > 0 {
			take := min(n, it.Quantity)
			bought[it.Key()] -= take
			it.Quantity -= take
		}
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = LineItem{}
	}
	s.items = kept
	s.notify(OpSettle)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	return Snapshot{Items: items}
}

func (s *Store) Items() []LineItem {
	return s.Snapshot().Items
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Count() int {
	return s.Snapshot().Count()
}

func (s *Store) Subtotal() decimal.Decimal {
	return s.Snapshot().Subtotal()
}

func (s *Store) notify(op string) {
	if s.observer != nil {
		s.observer.OnCartMutation(op)
	}
}

// Package wishlist keeps the set of products a shopper has saved for later.
package wishlist

import (
	"sync"

	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
}

// Store has set semantics: a product id appears at most once. Adding a
// present id and removing an absent one are no-ops, not errors.
type Store struct {
	mu    sync.Mutex
	order []string
	items map[string]Item
}

func NewStore() *Store {
	return &Store{items: make(map[string]Item)}
}

// Add inserts item unless its product id is already saved. It reports
// whether the wishlist changed.
func (s *Store) Add(item Item) bool {
	if item.ProductID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(item)
}

// Remove reports whether productID was present.
func (s *Store) Remove(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(productID)
}

// Toggle flips membership and returns whether the product is saved afterwards.
func (s *Store) Toggle(item Item) bool {
	if item.ProductID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ProductID]; ok {
		s.removeLocked(item.ProductID)
		return false
	}
	s.addLocked(item)
	return true
}

func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[productID]
	return ok
}

func (s *Store) Get(productID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[productID]
	return it, ok
}

// Items returns the saved products, oldest first.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) addLocked(item Item) bool {
	if _, ok := s.items[item.ProductID]; ok {
		return false
	}
	s.items[item.ProductID] = item
	s.order = append(s.order, item.ProductID)
	return true
}

func (s *Store) removeLocked(productID string) bool {
	if _, ok := s.items[productID]; !ok {
		return false
	}
	delete(s.items, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

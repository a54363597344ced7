package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps opaque session ids to Shops. A Shop is created once per
// application session and dropped after it sits idle.
type Registry struct {
	newShop func(id string) *Shop
	now     func() time.Time

	mu    sync.Mutex
	shops map[string]*Shop
}

func NewRegistry(newShop func(id string) *Shop) *Registry {
	return &Registry{newShop: newShop, now: time.Now, shops: map[string]*Shop{}}
}

// Get returns the shop for id. An empty or unknown id gets a new shop under
// a freshly generated id, never the one the caller supplied. The returned id
// is the one the client must send next time.
func (r *Registry) Get(id string) (*Shop, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shops[id]; ok && id != "" {
		s.touch()
		return s, id
	}
	id = uuid.NewString()
	s := r.newShop(id)
	r.shops[id] = s
	return s, id
}

func (r *Registry) Lookup(id string) (*Shop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shops[id]
	if ok {
		s.touch()
	}
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shops)
}

// Sweep closes and forgets shops idle for longer than idle.
func (r *Registry) Sweep(idle time.Duration) int {
	now := r.now()
	var stale []*Shop
	r.mu.Lock()
	for id, s := range r.shops {
		if s.idleSince(now) > idle {
			stale = append(stale, s)
			delete(r.shops, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// RunJanitor sweeps every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, idle, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(idle)
		}
	}
}

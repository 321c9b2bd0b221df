package cart

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/cartstore/pkg/logger"
	"github.com/angelmondragon/cartstore/pkg/metrics"
)

const (
	opAdd            = "add"
	opRemove         = "remove"
	opUpdateQuantity = "update_quantity"
	opClear          = "clear"
)

// Options configures a Store. A nil Persister means there is no storage surface:
// the store starts empty and never reads or writes.
type Options struct {
	Persister Persister
	Logger    *logger.Logger
	Metrics   *metrics.CartMetrics
	Clock     func() time.Time
}

// Store owns one cart. All methods are safe for concurrent use; mutations are
// applied one at a time and each successful one is written through the Persister.
type Store struct {
	mu        sync.Mutex
	items     []LineItem
	persister Persister
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
	clock     func() time.Time

	listenersMu  sync.RWMutex
	listeners    []listener
	nextListener int
}

type listener struct {
	id int
	fn func(View)
}

// Open builds a Store and restores it from the Persister. Missing or malformed
// persisted data yields an empty cart; Open never fails.
func Open(ctx context.Context, opts Options) *Store {
	s := &Store{
		items:     []LineItem{},
		persister: opts.Persister,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.persister == nil {
		return s
	}

	items, found, err := s.persister.Load(ctx)
	switch {
	case err != nil:
		s.metrics.IncRestoreFailure()
		s.logg.Error(ctx, "cart.restore_failed", err)
	case found:
		s.items = items
	}
	return s
}

// Add increments the row for the candidate's variant, or appends a new row with
// quantity 1. An existing row keeps its original name, price and image.
func (s *Store) Add(ctx context.Context, c Candidate) LineItem {
	s.mu.Lock()
	next := cloneItems(s.items)
	idx := -1
	for i, item := range next {
		if item.matches(c.ProductID, c.VariantID) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		next[idx].Quantity++
	} else {
		id := newItemID(c.ProductID, c.VariantID, s.clock(), func(candidate string) bool {
			return indexOf(next, candidate) >= 0
		})
		next = append(next, newLineItem(id, c))
		idx = len(next) - 1
	}
	added := next[idx]
	view := s.commitLocked(ctx, opAdd, next)
	s.mu.Unlock()

	s.logg.Debug(s.logg.WithCartItemID(ctx, added.ID), "cart.item_added")
	s.notify(view)
	return added
}

// Remove drops the row with the given id. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	idx := indexOf(s.items, id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	next := make([]LineItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	view := s.commitLocked(ctx, opRemove, next)
	s.mu.Unlock()

	s.notify(view)
}

// UpdateQuantity sets the quantity of the row in place. Quantities below 1 and
// unknown ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) {
	if quantity < 1 {
		return
	}
	s.mu.Lock()
	idx := indexOf(s.items, id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	next := cloneItems(s.items)
	next[idx].Quantity = quantity
	view := s.commitLocked(ctx, opUpdateQuantity, next)
	s.mu.Unlock()

	s.notify(view)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	view := s.commitLocked(ctx, opClear, []LineItem{})
	s.mu.Unlock()

	s.notify(view)
}

// Items returns a copy of the rows in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// TotalItems is the sum of all quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.items)
}

// TotalPrice is the sum of price × quantity in plain float64 arithmetic.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.items)
}

// View returns the items and both totals from one consistent state.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return viewOf(s.items)
}

// Subscribe registers fn to receive the new view after every change. The
// returned func unsubscribes.
func (s *Store) Subscribe(fn func(View)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) commitLocked(ctx context.Context, op string, next []LineItem) View {
	s.items = next
	s.metrics.IncMutation(op)
	if s.persister != nil {
		res := s.persister.Save(ctx, cloneItems(next))
		if res.Status == PersistFailed {
			s.metrics.IncPersistFailure()
			s.logg.WarnErr(s.logg.WithField(ctx, "op", op), "cart.persist_failed", res.Err)
		}
	}
	return viewOf(next)
}

func (s *Store) notify(view View) {
	s.listenersMu.RLock()
	listeners := make([]func(View), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l.fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(View{Items: cloneItems(view.Items), TotalItems: view.TotalItems, TotalPrice: view.TotalPrice})
	}
}

func viewOf(items []LineItem) View {
	return View{
		Items:      cloneItems(items),
		TotalItems: totalItems(items),
		TotalPrice: totalPrice(items),
	}
}

func indexOf(items []LineItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// README: Cart service: single-restaurant cart with merge rules and serialized persistence.
package cart

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultKey = "carrito"

// Service owns the in-memory cart and is the only writer of its persisted
// blob. Instances are independent; nothing is shared through package state.
type Service struct {
	kv  KV
	key string
	log *zap.Logger
	w   *writer

	mu      sync.Mutex
	loaded  bool
	items   []LineItem
	pending *LineItem
	version uint64
}

func NewService(kv KV, key string, log *zap.Logger) *Service {
	if key == "" {
		key = DefaultKey
	}
	return &Service{
		kv:  kv,
		key: key,
		log: log,
		w:   newWriter(kv, key, log),
	}
}

// Load reads the persisted cart. An absent or malformed blob yields an empty
// cart. A storage error leaves the service unloaded so that an empty
// in-memory default never overwrites what is on disk.
func (s *Service) Load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return err
	}

	items := []LineItem{}
	if ok && raw != "" {
		var decoded []LineItem
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			s.log.Warn("discarding malformed cart blob", zap.String("key", s.key), zap.Error(err))
		} else {
			for _, it := range decoded {
				it = it.normalize()
				if it.Quantity < 1 || it.validate() != nil {
					continue
				}
				items = append(items, it)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	s.items = items
	s.loaded = true
	return nil
}

func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Add puts quantity units of item in the cart. An item from a restaurant other
// than the cart's is parked as a pending replacement and ErrReplaceRequired is
// returned; the cart is left untouched until ConfirmReplace. Any later change
// to the cart drops the parked item.
func (s *Service) Add(item LineItem, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	item = item.normalize()
	if err := item.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}

	if len(s.items) > 0 && s.items[0].RestaurantID != item.RestaurantID {
		item.Quantity = quantity
		s.pending = &item
		return ErrReplaceRequired
	}
	s.pending = nil

	ids := item.ExtraIDs()
	for i := range s.items {
		if s.items[i].Matches(item.ID, ids) {
			s.items[i].Quantity += quantity
			s.persistLocked()
			return nil
		}
	}
	item.Quantity = quantity
	s.items = append(s.items, item)
	s.persistLocked()
	return nil
}

// PendingReplacement returns the item waiting for a replace confirmation.
func (s *Service) PendingReplacement() (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return LineItem{}, false
	}
	return *s.pending, true
}

// ConfirmReplace discards the whole cart in favour of the pending item.
func (s *Service) ConfirmReplace() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	if s.pending == nil {
		return ErrNoPendingReplace
	}
	s.items = []LineItem{*s.pending}
	s.pending = nil
	s.persistLocked()
	return nil
}

// CancelReplace drops the pending item; the cart is unchanged.
func (s *Service) CancelReplace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.pending != nil
	s.pending = nil
	return had
}

// Remove takes one unit off the line matching (id, extras) and deletes the
// line when it reaches zero. It reports whether a line matched.
func (s *Service) Remove(id string, extraIDs []int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}
	for i := range s.items {
		if !s.items[i].Matches(id, extraIDs) {
			continue
		}
		s.items[i].Quantity--
		if s.items[i].Quantity <= 0 {
			s.items = slices.Delete(s.items, i, i+1)
		}
		s.pending = nil
		s.persistLocked()
		return true, nil
	}
	return false, nil
}

// Clear empties the cart and erases the persisted blob.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.items = []LineItem{}
	s.pending = nil
	s.version++
	s.w.submit("", true)
	return nil
}

// Items returns a copy of the cart lines.
func (s *Service) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Snapshot returns the lines together with a version that changes on every
// mutation.
func (s *Service) Snapshot() ([]LineItem, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items), s.version
}

func (s *Service) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.items)
}

// Count is the number of units across all lines.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// RestaurantID is the owning restaurant, empty for an empty cart.
func (s *Service) RestaurantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return ""
	}
	return s.items[0].RestaurantID
}

// Flush blocks until every mutation issued so far has been written (or
// failed and been logged).
func (s *Service) Flush(ctx context.Context) error {
	return s.w.flush(ctx)
}

// Close flushes and stops the writer goroutine.
func (s *Service) Close(ctx context.Context) error {
	if err := s.w.flush(ctx); err != nil {
		return err
	}
	return s.w.close(ctx)
}

func (s *Service) persistLocked() {
	s.version++
	b, err := json.Marshal(s.items)
	if err != nil {
		s.log.Error("cart marshal failed", zap.Error(err))
		return
	}
	s.w.submit(string(b), false)
}

func cloneItems(in []LineItem) []LineItem {
	out := make([]LineItem, len(in))
	for i, it := range in {
		it.Extras = slices.Clone(it.Extras)
		out[i] = it
	}
	return out
}

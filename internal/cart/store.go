package cart

import (
	"context"
	"sync"

	"github.com/shopkit/checkout/internal/identity"
)

// Store is the cart state machine for a single shopper. All operations are
// synchronous and atomic with respect to the in-memory state; mutations
// commit in memory first and then write through to the Persistence port
// under the identity supplied to the most recent LoadForIdentity call.
type Store struct {
	persist Persistence

	mu        sync.Mutex
	id        identity.Identity
	items     []Line
	count     int
	panelOpen bool
}

// NewStore creates an empty cart bound to the guest identity. Call
// LoadForIdentity once the shopper's identity is known.
func NewStore(persist Persistence) *Store {
	return &Store{persist: persist, id: identity.Guest()}
}

// LoadForIdentity replaces the cart contents with the persisted partition
// for the given identity. Absent or unreadable storage yields an empty
// cart; this operation never fails. Subsequent write-through persistence
// targets the new identity.
func (s *Store) LoadForIdentity(ctx context.Context, id identity.Identity) {
	items := s.persist.Read(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.items = items
	s.count = recount(items)
}

// AddItem merges the line into the cart: an existing line with the same ID
// has its quantity incremented by qty, otherwise the line is appended at
// the end of the display order. A qty below 1 falls back to 1.
func (s *Store) AddItem(ctx context.Context, line Line, qty int) {
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].ID == line.ID {
			s.items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		line.Quantity = qty
		s.items = append(s.items, line)
	}
	s.count = recount(s.items)
	id, snapshot := s.id, cloneLines(s.items)
	s.mu.Unlock()

	s.persist.Write(ctx, id, snapshot)
}

// RemoveItem deletes the line with the given ID. Removing an absent ID is
// a no-op, but the persistence write still happens.
func (s *Store) RemoveItem(ctx context.Context, lineID string) {
	s.mu.Lock()
	kept := s.items[:0]
	for _, ln := range s.items {
		if ln.ID != lineID {
			kept = append(kept, ln)
		}
	}
	s.items = kept
	s.count = recount(s.items)
	id, snapshot := s.id, cloneLines(s.items)
	s.mu.Unlock()

	s.persist.Write(ctx, id, snapshot)
}

// UpdateQuantity sets the line's quantity to exactly qty. A qty below 1 is
// rejected and the state is left unchanged; this is the single input
// validation gate in the cart. Updating an absent ID is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, qty int) {
	if qty < 1 {
		return
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == lineID {
			s.items[i].Quantity = qty
			break
		}
	}
	s.count = recount(s.items)
	id, snapshot := s.id, cloneLines(s.items)
	s.mu.Unlock()

	s.persist.Write(ctx, id, snapshot)
}

// Clear empties the cart and deletes the identity's storage partition.
func (s *Store) Clear(ctx context.Context, id identity.Identity) {
	s.mu.Lock()
	s.items = nil
	s.count = 0
	s.mu.Unlock()

	s.persist.Delete(ctx, id)
}

// TogglePanel flips the transient panel-visibility flag. It has no other
// side effects and is never persisted.
func (s *Store) TogglePanel() {
	s.mu.Lock()
	s.panelOpen = !s.panelOpen
	s.mu.Unlock()
}

// PanelOpen reports whether the cart panel is currently visible.
func (s *Store) PanelOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelOpen
}

// Items returns a copy of the cart lines in display (insertion) order.
func (s *Store) Items() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.items)
}

// Count returns the total quantity across all lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Identity returns the identity whose partition the store currently
// writes through to.
func (s *Store) Identity() identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

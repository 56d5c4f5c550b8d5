// Package checkout drives a shopper's checkout session: a working copy of
// the cart, upsell offers, coupon application, and final order placement.
package checkout

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/shopkit/checkout/internal/cart"
	"github.com/shopkit/checkout/internal/catalog"
	"github.com/shopkit/checkout/internal/identity"
	"github.com/shopkit/checkout/internal/order"
	"github.com/shopkit/checkout/internal/pricing"
)

// maxUpsells is the number of candidates offered per query.
const maxUpsells = 4

var (
	// ErrAlreadyPlaced is returned by mutations after a successful
	// PlaceOrder; a placed session is terminal.
	ErrAlreadyPlaced = errors.New("checkout session already placed")
	// ErrEmptyOrder is returned when PlaceOrder is called with no items.
	ErrEmptyOrder = errors.New("order items required")
)

// Journal is the best-effort side channel fed from upsell additions.
// Implementations must swallow their own failures.
type Journal interface {
	Write(ctx context.Context, principal string, items []cart.Line)
}

// SessionConfig carries the collaborators a Session needs.
type SessionConfig struct {
	Catalog catalog.Repository
	Rates   pricing.Rates
	Orders  order.Store
	// Journal may be nil to disable the side channel.
	Journal Journal
	// Rand drives upsell sampling; defaults to a time-seeded source.
	// Inject a fixed seed in tests.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is the checkout orchestrator for one shopper. Its order items
// start as a copy of the cart and track it until the shopper edits the
// order (upsell additions, removals); after that the working copy
// diverges freely without touching the underlying cart until placement.
type Session struct {
	id    identity.Identity
	store *cart.Store
	cfg   SessionConfig

	mu            sync.Mutex
	items         []cart.Line
	shown         map[string]struct{}
	couponCode    string
	couponApplied bool
	diverged      bool
	placed        bool
}

// NewSession starts a checkout session seeded from the cart's current
// items.
func NewSession(id identity.Identity, store *cart.Store, cfg SessionConfig) *Session {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // sampling, not crypto
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		id:    id,
		store: store,
		cfg:   cfg,
		items: store.Items(),
		shown: make(map[string]struct{}),
	}
}

// Items returns a copy of the working order items.
func (s *Session) Items() []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cart.Line, len(s.items))
	copy(out, s.items)
	return out
}

// Placed reports whether the session has reached its terminal state.
func (s *Session) Placed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placed
}

// syncFromCart re-seeds the working items from the cart's current state.
// Cart mutations made while a checkout session exists flow into it this
// way until the shopper edits the order itself (adds an upsell or removes
// a line); from then on the working copy is authoritative.
func (s *Session) syncFromCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placed || s.diverged {
		return
	}
	s.items = s.store.Items()
}

// ApplyCoupon records the coupon code for pricing. Unknown codes are not
// an error; pricing silently falls back to the default discount rate.
func (s *Session) ApplyCoupon(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.couponCode = code
	s.couponApplied = true
}

// Quote prices the current order items with the session's coupon state.
func (s *Session) Quote() pricing.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteLocked()
}

func (s *Session) quoteLocked() pricing.Quote {
	items := make([]pricing.Item, len(s.items))
	for i, ln := range s.items {
		items[i] = pricing.Item{ID: ln.ID, Price: ln.Price, Quantity: ln.Quantity}
	}
	return pricing.Price(items, s.couponCode, s.couponApplied, s.cfg.Rates)
}

// Upsells returns up to four catalog products not already in the order
// and not yet offered in this session, sampled at random. The candidate
// pool is re-derived on every call and shrinks monotonically as products
// are added.
func (s *Session) Upsells(ctx context.Context) ([]catalog.Product, error) {
	products, err := s.cfg.Catalog.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inOrder := make(map[string]struct{}, len(s.items))
	for _, ln := range s.items {
		inOrder[ln.ID] = struct{}{}
	}

	eligible := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if _, ok := inOrder[p.ID]; ok {
			continue
		}
		if _, ok := s.shown[p.ID]; ok {
			continue
		}
		eligible = append(eligible, p)
	}

	s.cfg.Rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if len(eligible) > maxUpsells {
		eligible = eligible[:maxUpsells]
	}
	return eligible, nil
}

// AddUpsell merges the product into the working order items (increment if
// present, else append with quantity 1) and marks it as shown so it is
// never offered again this session. For authenticated shoppers the
// updated items are also journaled, best-effort, independent of the main
// cart partition.
func (s *Session) AddUpsell(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	if s.placed {
		s.mu.Unlock()
		return ErrAlreadyPlaced
	}

	merged := false
	for i := range s.items {
		if s.items[i].ID == p.ID {
			s.items[i].Quantity++
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, cart.Line{
			ID:       p.ID,
			Title:    p.Title,
			Image:    p.Image,
			Price:    p.Price,
			Quantity: 1,
		})
	}
	s.shown[p.ID] = struct{}{}
	s.diverged = true

	snapshot := make([]cart.Line, len(s.items))
	copy(snapshot, s.items)
	s.mu.Unlock()

	if s.cfg.Journal != nil && s.id.IsAuthenticated() {
		s.cfg.Journal.Write(ctx, s.id.JournalKey(), snapshot)
	}
	return nil
}

// RemoveOrderItem removes the line from the working order items only; the
// underlying cart is untouched.
func (s *Session) RemoveOrderItem(lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placed {
		return ErrAlreadyPlaced
	}

	kept := s.items[:0]
	for _, ln := range s.items {
		if ln.ID != lineID {
			kept = append(kept, ln)
		}
	}
	s.items = kept
	s.diverged = true
	return nil
}

// PlaceOrder prices the current order items, persists an immutable order
// record, clears the underlying cart, and returns the new order id.
//
// The record write commits first; only on success is the cart cleared and
// the session moved to its terminal state. A failed write leaves both the
// cart and the session intact, so placement can be retried.
func (s *Session) PlaceOrder(ctx context.Context, metadata map[string]string) (string, error) {
	s.mu.Lock()
	if s.placed {
		s.mu.Unlock()
		return "", ErrAlreadyPlaced
	}
	if len(s.items) == 0 {
		s.mu.Unlock()
		return "", ErrEmptyOrder
	}

	quote := s.quoteLocked()
	now := s.cfg.Now()
	rec := &order.Record{
		ID:          strconv.FormatInt(now.UnixMilli(), 10),
		Items:       append([]cart.Line(nil), s.items...),
		Total:       quote.Total,
		Status:      order.StatusPending,
		SubmittedAt: now,
		Metadata:    metadata,
	}
	s.mu.Unlock()

	if err := s.cfg.Orders.Create(ctx, rec); err != nil {
		return "", errors.Wrap(err, "create order record")
	}

	s.store.Clear(ctx, s.id)

	s.mu.Lock()
	s.placed = true
	s.mu.Unlock()

	return rec.ID, nil
}

package checkout

import (
	"context"
	"sync"

	"github.com/shopkit/checkout/internal/cart"
	"github.com/shopkit/checkout/internal/identity"
)

// Manager owns one cart store and at most one live checkout session per
// identity partition. Sessions that reach the Placed state are replaced
// on the next request; placed sessions never come back.
type Manager struct {
	persist cart.Persistence
	session SessionConfig

	mu       sync.Mutex
	carts    map[string]*cart.Store
	sessions map[string]*Session
}

// NewManager creates a Manager wiring carts to the given persistence port
// and sessions to the given collaborators.
func NewManager(persist cart.Persistence, session SessionConfig) *Manager {
	return &Manager{
		persist:  persist,
		session:  session,
		carts:    make(map[string]*cart.Store),
		sessions: make(map[string]*Session),
	}
}

// Cart returns the cart store for the identity, creating and loading it
// from storage on first use of the partition.
func (m *Manager) Cart(ctx context.Context, id identity.Identity) *cart.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartLocked(ctx, id)
}

func (m *Manager) cartLocked(ctx context.Context, id identity.Identity) *cart.Store {
	key := id.CartKey()
	if store, ok := m.carts[key]; ok {
		return store
	}
	store := cart.NewStore(m.persist)
	store.LoadForIdentity(ctx, id)
	m.carts[key] = store
	return store
}

// Session returns the identity's live checkout session, starting a new
// one from the cart's current items when none exists or the previous one
// was placed. A live session that has not been edited at checkout is
// re-seeded from the cart on every call, so cart mutations made between
// checkout requests are never lost.
func (m *Manager) Session(ctx context.Context, id identity.Identity) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := id.CartKey()
	if sess, ok := m.sessions[key]; ok && !sess.Placed() {
		sess.syncFromCart()
		return sess
	}
	sess := NewSession(id, m.cartLocked(ctx, id), m.session)
	m.sessions[key] = sess
	return sess
}

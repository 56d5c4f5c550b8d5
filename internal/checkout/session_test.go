package checkout

import (
	"context"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit/checkout/internal/cart"
	"github.com/shopkit/checkout/internal/catalog"
	"github.com/shopkit/checkout/internal/coupon"
	"github.com/shopkit/checkout/internal/identity"
	"github.com/shopkit/checkout/internal/order"
	"github.com/shopkit/checkout/internal/storage"
	"github.com/shopkit/checkout/internal/storage/memory"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// recordingJournal captures journal writes.
type recordingJournal struct {
	writes map[string][][]cart.Line
}

func newRecordingJournal() *recordingJournal {
	return &recordingJournal{writes: make(map[string][][]cart.Line)}
}

func (j *recordingJournal) Write(_ context.Context, principal string, items []cart.Line) {
	j.writes[principal] = append(j.writes[principal], items)
}

// failingOrderStore rejects every create.
type failingOrderStore struct{}

func (failingOrderStore) Create(context.Context, *order.Record) error {
	return errors.New("order backend down")
}

func (failingOrderStore) Get(context.Context, string) (*order.Record, error) {
	return nil, order.ErrNotFound
}

func testCatalog() catalog.Repository {
	return catalog.NewMemoryRepository([]catalog.Product{
		{ID: "p1", Title: "Tote", Price: d("14.50")},
		{ID: "p2", Title: "Bottle", Price: d("22.00")},
		{ID: "p3", Title: "Earbuds", Price: d("59.99")},
		{ID: "p4", Title: "Organizer", Price: d("18.75")},
		{ID: "p5", Title: "Mug", Price: d("9.90")},
		{ID: "p6", Title: "Notebook", Price: d("12.00")},
	})
}

type env struct {
	store   *cart.Store
	orders  *order.KVStore
	journal *recordingJournal
	adapter *storage.CartAdapter
	kv      *memory.KV
}

func newEnv(t *testing.T, id identity.Identity) (*Session, *env) {
	t.Helper()
	kv := memory.New()
	adapter := storage.NewCartAdapter(kv, nil)
	store := cart.NewStore(adapter)
	store.LoadForIdentity(context.Background(), id)

	e := &env{
		store:   store,
		orders:  order.NewKVStore(kv),
		journal: newRecordingJournal(),
		adapter: adapter,
		kv:      kv,
	}
	sess := NewSession(id, store, SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  e.orders,
		Journal: e.journal,
		Rand:    rand.New(rand.NewSource(1)),
		Now:     func() time.Time { return time.Date(2026, 4, 24, 12, 0, 0, 0, time.UTC) },
	})
	return sess, e
}

func TestSession_InitializedFromCart(t *testing.T) {
	ctx := context.Background()
	id := identity.Guest()

	kv := memory.New()
	adapter := storage.NewCartAdapter(kv, nil)
	store := cart.NewStore(adapter)
	store.AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 2)

	sess := NewSession(id, store, SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  order.NewKVStore(kv),
	})

	items := sess.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	// The working copy diverges from the cart without affecting it.
	require.NoError(t, sess.RemoveOrderItem("p1"))
	assert.Empty(t, sess.Items())
	assert.Len(t, store.Items(), 1)
}

func TestUpsells_ExcludesOrderItemsAndShown(t *testing.T) {
	ctx := context.Background()
	sess, e := newEnv(t, identity.Guest())
	e.store.AddItem(ctx, cart.Line{ID: "p1", Price: d("14.50")}, 1)
	sess = NewSession(identity.Guest(), e.store, sess.cfg)

	offers, err := sess.Upsells(ctx)
	require.NoError(t, err)
	assert.Len(t, offers, 4)
	for _, p := range offers {
		assert.NotEqual(t, "p1", p.ID)
	}

	// Adding an upsell removes it from every later candidate pool.
	require.NoError(t, sess.AddUpsell(ctx, offers[0]))
	again, err := sess.Upsells(ctx)
	require.NoError(t, err)
	for _, p := range again {
		assert.NotEqual(t, offers[0].ID, p.ID)
	}
}

func TestUpsells_PoolSmallerThanLimit(t *testing.T) {
	ctx := context.Background()
	sess, _ := newEnv(t, identity.Guest())

	for _, pid := range []string{"p1", "p2", "p3", "p4"} {
		p, err := testCatalog().GetByID(ctx, pid)
		require.NoError(t, err)
		require.NoError(t, sess.AddUpsell(ctx, *p))
	}

	offers, err := sess.Upsells(ctx)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestUpsells_DeterministicWithSeededRand(t *testing.T) {
	ctx := context.Background()

	run := func() []string {
		kv := memory.New()
		store := cart.NewStore(storage.NewCartAdapter(kv, nil))
		sess := NewSession(identity.Guest(), store, SessionConfig{
			Catalog: testCatalog(),
			Rates:   coupon.Default(),
			Orders:  order.NewKVStore(kv),
			Rand:    rand.New(rand.NewSource(42)),
		})
		offers, err := sess.Upsells(ctx)
		require.NoError(t, err)
		ids := make([]string, len(offers))
		for i, p := range offers {
			ids[i] = p.ID
		}
		return ids
	}

	assert.Equal(t, run(), run())
}

func TestAddUpsell_MergesAndJournals(t *testing.T) {
	ctx := context.Background()
	alice := identity.Identity{ID: "u1", Email: "alice@example.com"}
	sess, e := newEnv(t, alice)

	p, err := testCatalog().GetByID(ctx, "p2")
	require.NoError(t, err)

	require.NoError(t, sess.AddUpsell(ctx, *p))
	require.NoError(t, sess.AddUpsell(ctx, *p))

	items := sess.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	// Both actions journaled under the principal id, none under others.
	require.Len(t, e.journal.writes["u1"], 2)
	last := e.journal.writes["u1"][1]
	assert.Equal(t, 2, last[0].Quantity)

	// The main cart partition is untouched by upsell writes.
	assert.Empty(t, e.store.Items())
}

func TestAddUpsell_GuestSkipsJournal(t *testing.T) {
	ctx := context.Background()
	sess, e := newEnv(t, identity.Guest())

	p, err := testCatalog().GetByID(ctx, "p2")
	require.NoError(t, err)
	require.NoError(t, sess.AddUpsell(ctx, *p))

	assert.Empty(t, e.journal.writes)
}

func TestQuote_WithAppliedCoupon(t *testing.T) {
	ctx := context.Background()
	sess, e := newEnv(t, identity.Guest())
	e.store.AddItem(ctx, cart.Line{ID: "p1", Price: d("50")}, 2)
	sess = NewSession(identity.Guest(), e.store, sess.cfg)

	sess.ApplyCoupon("save20")
	q := sess.Quote()

	assert.True(t, d("100").Equal(q.Subtotal))
	assert.True(t, d("20.00").Equal(q.Discount))
	assert.True(t, d("5.00").Equal(q.Surcharge))
	assert.True(t, d("85.00").Equal(q.Total))
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	sess, e := newEnv(t, identity.Guest())
	e.store.AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 2)
	e.store.AddItem(ctx, cart.Line{ID: "p2", Price: d("5")}, 1)
	sess = NewSession(identity.Guest(), e.store, sess.cfg)

	orderID, err := sess.PlaceOrder(ctx, map[string]string{"name": "Alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)

	rec, err := e.orders.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, rec.Status)
	// subtotal 25, default 10% discount 2.50, surcharge 5.00
	assert.True(t, d("27.50").Equal(rec.Total), "got %s", rec.Total)
	assert.Len(t, rec.Items, 2)
	assert.Equal(t, "Alice", rec.Metadata["name"])

	// Placement clears the cart and its partition.
	assert.Empty(t, e.store.Items())
	assert.Equal(t, 0, e.store.Count())
	assert.Nil(t, e.adapter.Read(ctx, identity.Guest()))

	// The session is terminal.
	assert.True(t, sess.Placed())
	_, err = sess.PlaceOrder(ctx, nil)
	require.ErrorIs(t, err, ErrAlreadyPlaced)
	require.ErrorIs(t, sess.AddUpsell(ctx, catalog.Product{ID: "p3"}), ErrAlreadyPlaced)
	require.ErrorIs(t, sess.RemoveOrderItem("p1"), ErrAlreadyPlaced)
}

func TestPlaceOrder_IDMatchesSubmissionTime(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	store := cart.NewStore(storage.NewCartAdapter(kv, nil))
	store.AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 1)
	orders := order.NewKVStore(kv)

	// A clock that advances on every reading must still yield an order id
	// equal to the recorded submission time.
	base := time.Date(2026, 4, 24, 12, 0, 0, 0, time.UTC)
	ticks := 0
	sess := NewSession(identity.Guest(), store, SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  orders,
		Now: func() time.Time {
			ticks++
			return base.Add(time.Duration(ticks) * time.Millisecond)
		},
	})

	orderID, err := sess.PlaceOrder(ctx, nil)
	require.NoError(t, err)

	rec, err := orders.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(rec.SubmittedAt.UnixMilli(), 10), rec.ID)
}

func TestPlaceOrder_EmptyOrder(t *testing.T) {
	sess, _ := newEnv(t, identity.Guest())

	_, err := sess.PlaceOrder(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestPlaceOrder_RecordWriteFailureLeavesCartIntact(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	adapter := storage.NewCartAdapter(kv, nil)
	store := cart.NewStore(adapter)
	store.AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 2)

	sess := NewSession(identity.Guest(), store, SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  failingOrderStore{},
	})

	_, err := sess.PlaceOrder(ctx, nil)
	require.Error(t, err)

	// The record write failed before any cart side effect: items are
	// still there and the session can retry.
	assert.Len(t, store.Items(), 1)
	assert.False(t, sess.Placed())
	assert.NotNil(t, adapter.Read(ctx, identity.Guest()))
}

func TestManager_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	adapter := storage.NewCartAdapter(kv, nil)
	m := NewManager(adapter, SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  order.NewKVStore(kv),
	})
	guest := identity.Guest()

	c := m.Cart(ctx, guest)
	c.AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 1)

	// Same partition, same session until placed.
	s1 := m.Session(ctx, guest)
	s2 := m.Session(ctx, guest)
	assert.Same(t, s1, s2)

	_, err := s1.PlaceOrder(ctx, nil)
	require.NoError(t, err)

	// A placed session is replaced by a fresh one from the (now empty) cart.
	s3 := m.Session(ctx, guest)
	assert.NotSame(t, s1, s3)
	assert.Empty(t, s3.Items())
}

func TestManager_SessionTracksCartUntilEdited(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	adapter := storage.NewCartAdapter(kv, nil)
	orders := order.NewKVStore(kv)
	m := NewManager(adapter, SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  orders,
	})
	guest := identity.Guest()

	// Opening checkout before the cart has anything must not strand the
	// shopper: later cart additions flow into the same session.
	s1 := m.Session(ctx, guest)
	assert.Empty(t, s1.Items())
	s1.ApplyCoupon("SAVE20")

	m.Cart(ctx, guest).AddItem(ctx, cart.Line{ID: "p1", Price: d("50")}, 2)

	s2 := m.Session(ctx, guest)
	require.Same(t, s1, s2)
	require.Len(t, s2.Items(), 1)
	assert.Equal(t, 2, s2.Items()[0].Quantity)

	// Re-seeding keeps checkout-local state like the applied coupon.
	assert.True(t, d("20.00").Equal(s2.Quote().Discount))

	orderID, err := s2.PlaceOrder(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)
}

func TestManager_EditedSessionStopsTrackingCart(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	m := NewManager(storage.NewCartAdapter(kv, nil), SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  order.NewKVStore(kv),
	})
	guest := identity.Guest()

	m.Cart(ctx, guest).AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 1)

	sess := m.Session(ctx, guest)
	require.NoError(t, sess.RemoveOrderItem("p1"))

	// Once the order was edited at checkout the working copy is
	// authoritative; cart changes no longer flow in.
	m.Cart(ctx, guest).AddItem(ctx, cart.Line{ID: "p2", Price: d("5")}, 3)

	again := m.Session(ctx, guest)
	require.Same(t, sess, again)
	assert.Empty(t, again.Items())
}

func TestManager_CartPartitionPerIdentity(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	m := NewManager(storage.NewCartAdapter(kv, nil), SessionConfig{
		Catalog: testCatalog(),
		Rates:   coupon.Default(),
		Orders:  order.NewKVStore(kv),
	})

	alice := identity.Identity{ID: "u1", Email: "alice@example.com"}
	bob := identity.Identity{ID: "u2", Email: "bob@example.com"}

	m.Cart(ctx, alice).AddItem(ctx, cart.Line{ID: "p1", Price: d("10")}, 1)

	assert.Len(t, m.Cart(ctx, alice).Items(), 1)
	assert.Empty(t, m.Cart(ctx, bob).Items())
	assert.Same(t, m.Cart(ctx, alice), m.Cart(ctx, alice))
}

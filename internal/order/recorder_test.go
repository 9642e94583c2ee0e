package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PocketBazaar/internal/cart"
	"PocketBazaar/internal/catalog"
	"PocketBazaar/internal/kv"
	"PocketBazaar/internal/kv/kvtest"
	"PocketBazaar/internal/snapshot"
)

var shipping = ShippingDetails{Name: "Ada Lovelace", Address: "12 Analytical St", Phone: "+44 20 7946 0000"}

type fixture struct {
	store    *kvtest.Flaky
	cart     *cart.Store
	history  *History
	recorder *Recorder
	viewer   *Viewer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	store := kvtest.NewFlaky(nil)
	c := cart.Open(ctx, store)
	h := NewHistory(store, "")

	seq := 0
	r := NewRecorder(c, h, nil)
	r.Now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("CET", 3600)) }
	r.NewID = func() string {
		seq++
		return fmt.Sprintf("o_%d", seq)
	}

	return &fixture{store: store, cart: c, history: h, recorder: r, viewer: NewViewer(h, nil)}
}

func (f *fixture) add(id int, price string, times int) {
	for i := 0; i < times; i++ {
		f.cart.Add(context.Background(), catalog.Product{ID: id, Title: "p", Price: decimal.RequireFromString(price)})
	}
}

func TestCheckout_AppendsOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(1, "10.00", 2)
	f.add(2, "5.50", 1)
	wantTotal := f.cart.TotalPrice()

	o, err := f.recorder.Checkout(ctx, shipping)
	require.NoError(t, err)

	assert.Equal(t, "o_1", o.ID)
	assert.Equal(t, time.UTC, o.CreatedAt.Location())
	assert.True(t, o.Total.Equal(wantTotal))
	assert.Equal(t, "25.50", o.Total.StringFixed(2))
	assert.Equal(t, shipping, o.Shipping)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Quantity)

	assert.Empty(t, f.cart.Items())

	stored, err := f.history.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, o.ID, stored[0].ID)
	assert.True(t, stored[0].Total.Equal(wantTotal))
}

func TestCheckout_OrderIsUnaffectedByLaterCartChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(1, "3.00", 1)

	o, err := f.recorder.Checkout(ctx, shipping)
	require.NoError(t, err)

	f.add(1, "3.00", 4)
	assert.Equal(t, 1, o.Items[0].Quantity)

	stored, err := f.viewer.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Items[0].Quantity)
}

func TestCheckout_MissingShippingField(t *testing.T) {
	tests := []struct {
		name    string
		details ShippingDetails
		missing []string
	}{
		{"no name", ShippingDetails{Address: "a", Phone: "p"}, []string{"name"}},
		{"blank address", ShippingDetails{Name: "n", Address: "   ", Phone: "p"}, []string{"address"}},
		{"no phone", ShippingDetails{Name: "n", Address: "a"}, []string{"phone"}},
		{"all empty", ShippingDetails{}, []string{"name", "address", "phone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.add(1, "1.00", 2)
			before := f.cart.Items()
			writes := f.store.Writes(DefaultKey)

			_, err := f.recorder.Checkout(ctx, tt.details)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.missing, verr.Missing)

			assert.Equal(t, before, f.cart.Items())
			assert.Equal(t, writes, f.store.Writes(DefaultKey))
			orders, err := f.viewer.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.recorder.Checkout(context.Background(), shipping)
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, f.store.Writes(DefaultKey))
}

func TestCheckout_WriteFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(1, "2.00", 3)
	f.store.FailSet(DefaultKey, true)

	_, err := f.recorder.Checkout(ctx, shipping)
	require.ErrorIs(t, err, kvtest.ErrInjected)

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestCheckout_CartWriteFailureAfterOrderKeepsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(1, "2.00", 1)
	stale := f.store.Last(cart.DefaultKey)
	f.store.FailSet(cart.DefaultKey, true)

	o, err := f.recorder.Checkout(ctx, shipping)
	require.NoError(t, err)
	assert.Empty(t, f.cart.Items())

	orders, err := f.viewer.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
	assert.Equal(t, stale, f.store.Last(cart.DefaultKey))
}

// gatedStore blocks the first write to key until release is closed.
type gatedStore struct {
	kv.Store
	key     string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Set(ctx context.Context, key, value string) error {
	if key == g.key {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Store.Set(ctx, key, value)
}

func TestCheckout_AddDuringOrderWriteStaysInCart(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{
		Store:   kv.NewMemStore(),
		key:     DefaultKey,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := cart.Open(ctx, store)
	r := NewRecorder(c, NewHistory(store, ""), nil)
	c.Add(ctx, catalog.Product{ID: 1, Price: decimal.RequireFromString("3.00")})

	type result struct {
		o   Order
		err error
	}
	placed := make(chan result, 1)
	go func() {
		o, err := r.Checkout(ctx, shipping)
		placed <- result{o, err}
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("order write never started")
	}

	added := make(chan struct{})
	go func() {
		c.Add(ctx, catalog.Product{ID: 2, Price: decimal.RequireFromString("4.00")})
		close(added)
	}()
	close(store.release)

	res := <-placed
	require.NoError(t, res.err)
	require.Len(t, res.o.Items, 1)
	assert.Equal(t, 1, res.o.Items[0].Product.ID)

	select {
	case <-added:
	case <-time.After(2 * time.Second):
		t.Fatal("add never completed")
	}
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Product.ID)

	reopened := cart.Open(ctx, store)
	require.Len(t, reopened.Items(), 1)
	assert.Equal(t, 2, reopened.Items()[0].Product.ID)
}

func TestCheckout_UnreadableHistoryStartsOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, DefaultKey, "{corrupt"))
	f.add(1, "2.00", 1)

	o, err := f.recorder.Checkout(ctx, shipping)
	require.NoError(t, err)

	orders, err := f.viewer.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
}

func TestCheckout_NewerHistoryIsNotOverwritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newer := `{"version":7,"orders":[]}`
	require.NoError(t, f.store.Set(ctx, DefaultKey, newer))
	f.add(1, "2.00", 1)

	_, err := f.recorder.Checkout(ctx, shipping)
	require.ErrorIs(t, err, snapshot.ErrUnsupportedVersion)

	assert.Equal(t, newer, f.store.Last(DefaultKey))
	assert.Len(t, f.cart.Items(), 1)
}

func TestCheckout_AppendsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		f.add(i, "1.00", i)
		_, err := f.recorder.Checkout(ctx, shipping)
		require.NoError(t, err)
	}

	stored, err := f.history.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, o := range stored {
		assert.Equal(t, fmt.Sprintf("o_%d", i+1), o.ID)
	}
}

func TestDefaultOrderID(t *testing.T) {
	r := NewRecorder(nil, nil, nil)
	a, b := r.newID(), r.newID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^o_[0-9a-f-]{36}$`, a)
}

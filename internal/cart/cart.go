// Package cart holds the session's shopping cart: an ordered list of line
// items kept in memory and written through to a key-value store after every
// change.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"PocketBazaar/internal/catalog"
	"PocketBazaar/internal/kv"
	"PocketBazaar/internal/snapshot"
)

// DefaultKey is the key the cart snapshot is stored under.
const DefaultKey = "cart"

const itemsField = "items"

// LineItem is one distinct product in the cart. Quantity is always >= 1.
type LineItem struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Subtotal is price × quantity for the line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// PersistFunc is called after every snapshot write with its outcome.
type PersistFunc func(key string, err error)

// Store owns the cart state for one session. Mutations are applied in
// memory first and then the whole cart is written to the key-value store
// before the call returns. A failed write is logged and reported through
// the persist hook; the in-memory cart stays authoritative.
type Store struct {
	mu    sync.Mutex
	items []LineItem

	kv        kv.Store
	key       string
	log       *zap.Logger
	onPersist PersistFunc

	// readOnly is set when the stored snapshot was written by a newer
	// version; it is never overwritten.
	readOnly error
}

// Option configures a Store in Open.
type Option func(*Store)

// WithLogger sets the logger used for load and write failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithKey stores the cart snapshot under key instead of DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithPersistHook registers fn to observe every snapshot write.
func WithPersistHook(fn PersistFunc) Option {
	return func(s *Store) { s.onPersist = fn }
}

// Open creates the cart and restores the last persisted snapshot. Any
// failure to read or decode it is logged and the cart starts empty. A
// snapshot with a newer version is left in place: the cart works in memory
// and every write is skipped and reported as failed.
func Open(ctx context.Context, store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:  store,
		key: DefaultKey,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	items, err := s.load(ctx)
	if err != nil {
		s.log.Warn("failed to load cart, starting empty", zap.String("key", s.key), zap.Error(err))
		items = nil
		if errors.Is(err, snapshot.ErrUnsupportedVersion) {
			s.readOnly = fmt.Errorf("cart snapshot is read-only: %w", err)
		}
	}
	s.items = items
	return s
}

func (s *Store) load(ctx context.Context) ([]LineItem, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil || !ok {
		return nil, err
	}

	var items []LineItem
	version, err := snapshot.Decode(raw, itemsField, &items)
	if err != nil {
		return nil, err
	}
	if version < snapshot.Version {
		s.log.Info("migrating cart snapshot", zap.Int("from_version", version))
	}
	return normalize(items), nil
}

// normalize enforces the cart invariants on restored data: positive
// quantities and one line per product id, in first-seen order.
func normalize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[int]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		if i, dup := index[it.Product.ID]; dup {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.Product.ID] = len(out)
		out = append(out, it)
	}
	return out
}

// Add puts one more unit of p in the cart. The first add of a product keeps
// the product record as it was at that moment.
func (s *Store) Add(ctx context.Context, p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity++
	} else {
		s.items = append(s.items, LineItem{Product: p, Quantity: 1})
	}
	s.persist(ctx)
}

// Remove drops the line for productID. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persist(ctx)
}

// Increment adds one unit to an existing line. Unknown ids are ignored.
func (s *Store) Increment(ctx context.Context, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.items[i].Quantity++
	s.persist(ctx)
}

// Decrement removes one unit from an existing line; the line disappears
// when its quantity would reach zero. Unknown ids are ignored.
func (s *Store) Decrement(ctx context.Context, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	if s.items[i].Quantity <= 1 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	} else {
		s.items[i].Quantity--
	}
	s.persist(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.persist(ctx)
}

// Drain hands a copy of the current lines to place while holding the cart
// lock, and empties the cart only if place returns nil. Mutations issued
// meanwhile wait and apply to the emptied cart. An error from place is
// returned as is and leaves the cart unchanged.
func (s *Store) Drain(ctx context.Context, place func(items []LineItem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	if err := place(items); err != nil {
		return err
	}

	s.items = nil
	s.persist(ctx)
	return nil
}

// Items returns a copy of the line items in the order they were first added.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the line for productID, if the product is in the cart.
func (s *Store) Item(productID int) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(productID); i >= 0 {
		return s.items[i], true
	}
	return LineItem{}, false
}

// TotalPrice is the sum of price × quantity over the current lines.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Total(s.items)
}

// Count is the number of distinct products in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

func (s *Store) indexOf(productID int) int {
	for i := range s.items {
		if s.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// persist writes the full cart. Callers hold s.mu, so writes land in
// mutation order.
func (s *Store) persist(ctx context.Context) {
	items := s.items
	if items == nil {
		items = []LineItem{}
	}

	err := s.readOnly
	if err == nil {
		var raw string
		raw, err = snapshot.Encode(itemsField, items)
		if err == nil {
			err = s.kv.Set(ctx, s.key, raw)
		}
	}
	if err != nil {
		s.log.Error("failed to save cart", zap.String("key", s.key), zap.Error(err))
	}
	if s.onPersist != nil {
		s.onPersist(s.key, err)
	}
}

// Total sums the subtotals of items.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

package order

import (
	"context"

	"PocketBazaar/internal/kv"
	"PocketBazaar/internal/snapshot"
)

// DefaultKey is the key the order sequence is stored under.
const DefaultKey = "orders"

const ordersField = "orders"

// History is the persisted, append-ordered sequence of orders.
type History struct {
	kv  kv.Store
	key string
}

func NewHistory(store kv.Store, key string) *History {
	if key == "" {
		key = DefaultKey
	}
	return &History{kv: store, key: key}
}

// Load returns the orders in append order. A key that was never written
// yields an empty sequence and no error.
func (h *History) Load(ctx context.Context) ([]Order, error) {
	raw, ok, err := h.kv.Get(ctx, h.key)
	if err != nil || !ok {
		return nil, err
	}

	var orders []Order
	if _, err := snapshot.Decode(raw, ordersField, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Save overwrites the stored sequence with orders.
func (h *History) Save(ctx context.Context, orders []Order) error {
	if orders == nil {
		orders = []Order{}
	}
	raw, err := snapshot.Encode(ordersField, orders)
	if err != nil {
		return err
	}
	return h.kv.Set(ctx, h.key, raw)
}

func (h *History) Key() string { return h.key }

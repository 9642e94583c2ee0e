package shop

import (
	"context"

	"go.uber.org/zap"

	"PocketBazaar/internal/cart"
	"PocketBazaar/internal/catalog"
	"PocketBazaar/internal/kv"
	"PocketBazaar/internal/order"
	"PocketBazaar/pkg/kit"
)

// Catalog is the read-only product lookup the session browses.
type Catalog interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int) (catalog.Product, error)
}

type SessionDeps struct {
	KV      kv.Store
	Catalog Catalog
	Log     *zap.Logger
	Metrics *kit.Metrics

	// CartKey and OrdersKey default to cart.DefaultKey and order.DefaultKey.
	CartKey   string
	OrdersKey string
}

// Session owns the state of one running shop: the cart, the order history
// and the catalog it browses. It is created at startup and handed to
// whatever serves the user.
type Session struct {
	KV       kv.Store
	Catalog  Catalog
	Cart     *cart.Store
	Recorder *order.Recorder
	Viewer   *order.Viewer
	Log      *zap.Logger
	Metrics  *kit.Metrics
}

// NewSession restores the persisted cart and wires the order recorder to it.
func NewSession(ctx context.Context, deps SessionDeps) *Session {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	cartKey := deps.CartKey
	if cartKey == "" {
		cartKey = cart.DefaultKey
	}

	c := cart.Open(ctx, deps.KV,
		cart.WithKey(cartKey),
		cart.WithLogger(log.Named("cart")),
		cart.WithPersistHook(deps.Metrics.ObserveStoreWrite),
	)
	history := order.NewHistory(deps.KV, deps.OrdersKey)

	log.Info("session started", zap.Int("cart_lines", c.Count()))

	return &Session{
		KV:       deps.KV,
		Catalog:  deps.Catalog,
		Cart:     c,
		Recorder: order.NewRecorder(c, history, log.Named("order")),
		Viewer:   order.NewViewer(history, log.Named("order")),
		Log:      log,
		Metrics:  deps.Metrics,
	}
}

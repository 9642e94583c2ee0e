package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PocketBazaar/internal/cart"
	"PocketBazaar/internal/snapshot"
)

// Cart is the part of the cart store checkout needs. Drain must empty the
// cart only when place returns nil and must hold off other cart mutations
// until it returns.
type Cart interface {
	Drain(ctx context.Context, place func(items []cart.LineItem) error) error
}

// Recorder turns the current cart into an order. The cart is cleared only
// after the order sequence has been written.
type Recorder struct {
	Cart    Cart
	History *History
	Log     *zap.Logger

	// Now and NewID default to the wall clock and "o_"+uuid.
	Now   func() time.Time
	NewID func() string

	mu sync.Mutex
}

func NewRecorder(c Cart, h *History, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{Cart: c, History: h, Log: log}
}

// Checkout validates shipping, appends an order built from the cart to the
// history and clears the cart. On any error the cart is left as it was.
func (r *Recorder) Checkout(ctx context.Context, shipping ShippingDetails) (Order, error) {
	if err := shipping.Validate(); err != nil {
		return Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var o Order
	err := r.Cart.Drain(ctx, func(items []cart.LineItem) error {
		if len(items) == 0 {
			return ErrEmptyCart
		}
		o = Order{
			ID:        r.newID(),
			CreatedAt: r.now().UTC(),
			Items:     items,
			Total:     cart.Total(items),
			Shipping:  shipping,
		}
		return r.append(ctx, o)
	})
	if err != nil {
		return Order{}, err
	}

	r.Log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.Int("lines", len(o.Items)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return "o_" + uuid.NewString()
}

func (r *Recorder) append(ctx context.Context, o Order) error {
	orders, err := r.History.Load(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrUnsupportedVersion) {
			return fmt.Errorf("load orders: %w", err)
		}
		r.Log.Warn("failed to load orders, starting a new history", zap.Error(err))
		orders = nil
	}

	orders = append(orders, o)
	if err := r.History.Save(ctx, orders); err != nil {
		r.Log.Error("failed to save order", zap.String("order_id", o.ID), zap.Error(err))
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

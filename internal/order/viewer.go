package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Viewer is the read side of the order history.
type Viewer struct {
	History *History
	Log     *zap.Logger
}

func NewViewer(h *History, log *zap.Logger) *Viewer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Viewer{History: h, Log: log}
}

// List returns the orders newest first. When the history cannot be read the
// result is empty and the error wraps ErrLoad, so callers that want to treat
// both cases alike can ignore it.
func (v *Viewer) List(ctx context.Context) ([]Order, error) {
	orders, err := v.History.Load(ctx)
	if err != nil {
		v.Log.Warn("failed to load orders", zap.Error(err))
		return []Order{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	out := make([]Order, len(orders))
	for i, o := range orders {
		out[len(orders)-1-i] = o
	}
	return out, nil
}

func (v *Viewer) Get(ctx context.Context, id string) (Order, error) {
	orders, err := v.History.Load(ctx)
	if err != nil {
		v.Log.Warn("failed to load orders", zap.Error(err))
		return Order{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	for _, o := range orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

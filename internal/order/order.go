// Package order records checkouts as immutable orders and lists past ones.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PocketBazaar/internal/cart"
)

var (
	ErrValidation = errors.New("invalid shipping details")
	ErrEmptyCart  = errors.New("cart is empty")
	ErrNotFound   = errors.New("order not found")
	ErrLoad       = errors.New("failed to load orders")
)

type ShippingDetails struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Order is a snapshot of the cart at checkout time. It is never changed
// after it has been written.
type Order struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []cart.LineItem `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Shipping  ShippingDetails `json:"shipping"`
}

// ValidationError lists the shipping fields that were left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing shipping fields: %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validate requires every field to be non-blank.
func (d ShippingDetails) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(d.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

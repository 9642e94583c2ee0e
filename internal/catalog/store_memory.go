package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[int]Product
}

// NewMemStore returns a store holding products. With no arguments it is
// seeded with a small demo catalog.
func NewMemStore(products ...Product) *MemStore {
	if len(products) == 0 {
		products = seedProducts()
	}
	s := &MemStore{m: make(map[int]Product, len(products))}
	for _, p := range products {
		s.m[p.ID] = p
	}
	return s
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id int) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}

func seedProducts() []Product {
	return []Product{
		{
			ID:          1,
			Title:       "Canvas Backpack",
			Price:       decimal.RequireFromString("109.95"),
			Description: "Fits 15 inch laptops, padded sleeve.",
			Category:    "men's clothing",
			Image:       "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg",
			Rating:      Rating{Rate: decimal.RequireFromString("3.9"), Count: 120},
		},
		{
			ID:          2,
			Title:       "Slim Fit T-Shirt",
			Price:       decimal.RequireFromString("22.30"),
			Description: "Lightweight cotton, raglan sleeves.",
			Category:    "men's clothing",
			Image:       "https://fakestoreapi.com/img/71-3HjGNDUL._AC_SY879._SX._UX._SY._UY_.jpg",
			Rating:      Rating{Rate: decimal.RequireFromString("4.1"), Count: 259},
		},
		{
			ID:          3,
			Title:       "Silver Dragon Bracelet",
			Price:       decimal.RequireFromString("695.00"),
			Description: "Sterling silver chain bracelet.",
			Category:    "jewelery",
			Image:       "https://fakestoreapi.com/img/71pWzhdJNwL._AC_UL640_QL65_ML3_.jpg",
			Rating:      Rating{Rate: decimal.RequireFromString("4.6"), Count: 400},
		},
		{
			ID:          4,
			Title:       "Portable SSD 1TB",
			Price:       decimal.RequireFromString("64.00"),
			Description: "USB 3.0, up to 500MB/s.",
			Category:    "electronics",
			Image:       "https://fakestoreapi.com/img/61IBBVJvSDL._AC_SY879_.jpg",
			Rating:      Rating{Rate: decimal.RequireFromString("3.3"), Count: 203},
		},
		{
			ID:          5,
			Title:       "Rain Jacket",
			Price:       decimal.RequireFromString("39.99"),
			Description: "Windbreaker with hood, striped lining.",
			Category:    "women's clothing",
			Image:       "https://fakestoreapi.com/img/71HblAHs5xL._AC_UY879_-2.jpg",
			Rating:      Rating{Rate: decimal.RequireFromString("3.8"), Count: 679},
		},
	}
}

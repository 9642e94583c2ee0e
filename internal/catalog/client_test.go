package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"PocketBazaar/internal/catalog"
)

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &catalog.Server{Store: catalog.NewMemStore(), Log: zap.NewNop()}
	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "catalog",
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_ListProducts(t *testing.T) {
	ts := newCatalogTS(t)
	c := catalog.NewClient(ts.URL + "/")

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 5 {
		t.Fatalf("len=%d want=5", len(products))
	}
	for i, p := range products {
		if p.ID != i+1 {
			t.Fatalf("products[%d].ID=%d want=%d", i, p.ID, i+1)
		}
	}
	if !products[1].Price.Equal(decimal.RequireFromString("22.3")) {
		t.Fatalf("price=%s", products[1].Price)
	}
}

func TestClient_GetProduct(t *testing.T) {
	ts := newCatalogTS(t)
	c := catalog.NewClient(ts.URL)

	p, err := c.GetProduct(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Title != "Silver Dragon Bracelet" {
		t.Fatalf("title=%q", p.Title)
	}
	if p.Rating.Count != 400 {
		t.Fatalf("rating count=%d", p.Rating.Count)
	}

	_, err = c.GetProduct(context.Background(), 999)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestClient_DecodesNumericPrices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"title":"Mug","price":10.5,"rating":{"rate":4.2,"count":3}}`))
	}))
	t.Cleanup(ts.Close)

	p, err := catalog.NewClient(ts.URL).GetProduct(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !p.Price.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("price=%s", p.Price)
	}
}

func TestClient_EmptyBodyIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	_, err := catalog.NewClient(ts.URL).GetProduct(context.Background(), 42)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestClient_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	_, err := catalog.NewClient(ts.URL).ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrBadStatus) {
		t.Fatalf("err=%v want ErrBadStatus", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := catalog.NewClient(url).ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestClient_GetProductCancelOnlyStopsItsCaller(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	ts := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":5,"title":"Lamp","price":"12.00"}`))
	}))
	c := catalog.NewClient(ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.GetProduct(ctx, 5)
		first <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the server")
	}

	type result struct {
		p   catalog.Product
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := c.GetProduct(context.Background(), 5)
		second <- result{p, err}
	}()

	cancel()
	select {
	case err := <-first:
		if !errors.Is(err, catalog.ErrUnavailable) {
			t.Fatalf("cancelled caller err=%v want ErrUnavailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("live caller: %v", res.err)
		}
		if res.p.Title != "Lamp" {
			t.Fatalf("title=%q", res.p.Title)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live caller did not return")
	}
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

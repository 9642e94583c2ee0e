package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "https://fakestoreapi.com"

	clientTimeout = 5 * time.Second
	maxBody       = 4 << 20
)

var (
	ErrNotFound    = errors.New("catalog product not found")
	ErrBadStatus   = errors.New("catalog bad status")
	ErrUnavailable = errors.New("catalog unavailable")
)

// Client reads products from a remote catalog. It never retries; concurrent
// lookups of the same product share one request.
type Client struct {
	BaseURL string
	Client  *http.Client

	sfg singleflight.Group
}

func NewClient(baseURL string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: clientTimeout},
	}
}

// ListProducts returns the catalog in the order the remote serves it.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	body, err := c.get(ctx, "/products")
	if err != nil {
		return nil, err
	}

	var out []Product
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

// GetProduct fetches one product. A 404 and an empty 200 body both map to
// ErrNotFound; the public catalog answers unknown ids with the latter.
func (c *Client) GetProduct(ctx context.Context, id int) (Product, error) {
	key := strconv.Itoa(id)
	// The shared request outlives any one caller; the client timeout
	// still bounds it.
	reqCtx := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(key, func() (any, error) {
		body, err := c.get(reqCtx, "/products/"+key)
		if err != nil {
			return Product{}, err
		}
		if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
			return Product{}, ErrNotFound
		}

		var p Product
		if err := json.Unmarshal(body, &p); err != nil {
			return Product{}, fmt.Errorf("decode product: %w", err)
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return Product{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Product{}, res.Err
		}
		return res.Val.(Product), nil
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}

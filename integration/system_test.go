//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080")

type cartResp struct {
	Items []struct {
		Product struct {
			ID int `json:"id"`
		} `json:"product"`
		Quantity int `json:"quantity"`
	} `json:"items"`
	Total string `json:"total"`
	Count int    `json:"count"`
}

// Runs against a shop started with a durable KV_BACKEND. With
// E2E_RESTART_SHOP=1 the shop container is restarted mid-test and the cart
// must come back unchanged.
func TestSystem_E2E_CartSurvivesRestart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	doJSON(t, http.MethodDelete, baseURL+"/cart", nil, nil, 200)

	var products []map[string]any
	doJSON(t, http.MethodGet, baseURL+"/products", nil, &products, 200)
	if len(products) == 0 {
		t.Fatalf("expected non-empty products")
	}

	pid, _ := products[0]["id"].(float64)
	if pid == 0 {
		t.Fatalf("product id missing in response: %#v", products[0])
	}

	var c cartResp
	doJSON(t, http.MethodPost, baseURL+"/cart/items", map[string]any{"product_id": int(pid)}, &c, 200)
	doJSON(t, http.MethodPost, baseURL+"/cart/items", map[string]any{"product_id": int(pid)}, &c, 200)
	if c.Count != 1 || c.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %#v", c)
	}

	if os.Getenv("E2E_RESTART_SHOP") == "1" {
		restartContainer(t, ctx, "shop")
		waitReady(t, ctx, baseURL+"/readyz")

		var restored cartResp
		doJSON(t, http.MethodGet, baseURL+"/cart", nil, &restored, 200)
		if restored.Count != 1 || restored.Items[0].Quantity != 2 || restored.Total != c.Total {
			t.Fatalf("cart not restored: got %#v want %#v", restored, c)
		}
	}

	var created map[string]any
	doJSON(t, http.MethodPost, baseURL+"/checkout", map[string]any{
		"name":    "E2E",
		"address": "1 Test Way",
		"phone":   "000",
	}, &created, 201)

	orderID, _ := created["id"].(string)
	if orderID == "" {
		t.Fatalf("order id missing: %#v", created)
	}

	var orders []map[string]any
	doJSON(t, http.MethodGet, baseURL+"/orders", nil, &orders, 200)
	if len(orders) == 0 || orders[0]["id"] != orderID {
		t.Fatalf("newest order not first: %#v", orders)
	}

	doJSON(t, http.MethodGet, baseURL+"/cart", nil, &c, 200)
	if c.Count != 0 {
		t.Fatalf("cart not cleared after checkout: %#v", c)
	}
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

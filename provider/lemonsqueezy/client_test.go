package lemonsqueezy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/provider"
	"github.com/xraph/fulfillment/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(Config{
		APIKey:    "key",
		StoreID:   "42",
		VariantID: "7",
		BaseURL:   srv.URL,
	})
}

func TestCreateCheckout(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkouts" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != mediaType {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"chk-1","attributes":{"url":"https://pay.example/chk-1"}}}`)
	})

	co, err := c.CreateCheckout(context.Background(), &provider.CheckoutRequest{
		CustomPrice: types.USD(1500),
		Name:        "Your Order (2 items)",
		Description: "desc",
		Custom:      map[string]any{"item_count": 2},
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if co.ID != "chk-1" || co.URL != "https://pay.example/chk-1" {
		t.Errorf("got %+v", co)
	}

	attrs := got["data"].(map[string]any)["attributes"].(map[string]any)
	if attrs["custom_price"] != float64(1500) {
		t.Errorf("custom_price = %v, want 1500", attrs["custom_price"])
	}
	rel := got["data"].(map[string]any)["relationships"].(map[string]any)
	variant := rel["variant"].(map[string]any)["data"].(map[string]any)
	if variant["id"] != "7" {
		t.Errorf("variant id = %v, want 7", variant["id"])
	}
}

func TestCreateCheckoutProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"errors":[{"detail":"bad variant"}]}`)
	})

	_, err := c.CreateCheckout(context.Background(), &provider.CheckoutRequest{CustomPrice: types.USD(100)})
	if !errors.Is(err, fulfillment.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	var pe *fulfillment.ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected ProviderError with 422, got %v", err)
	}
}

func TestCreateCheckoutMissingConfig(t *testing.T) {
	c := New(Config{APIKey: "key"})

	_, err := c.CreateCheckout(context.Background(), &provider.CheckoutRequest{})
	if !errors.Is(err, fulfillment.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	var ce *fulfillment.ConfigError
	if !errors.As(err, &ce) || len(ce.Missing) != 2 {
		t.Errorf("expected 2 missing keys, got %v", err)
	}
}

func TestListFilesFilterAndDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if v := r.URL.Query().Get("filter[variant_id]"); v != "99" {
			t.Errorf("filter[variant_id] = %q", v)
		}
		fmt.Fprint(w, `{"data":[
			{"type":"files","id":"1","attributes":{"variant_id":99,"name":"a.pdf","extension":"pdf","size":10,"status":"published","test_mode":false,"download_url":"https://dl/1"}},
			{"type":"files","id":"2","attributes":{"variant_id":"99","name":"b.pdf","size":20,"status":"draft","test_mode":true,"download_url":"https://dl/2"}}
		]}`)
	})

	files, err := c.ListFiles(context.Background(), provider.FileFilter{VariantID: "99"})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Name != "a.pdf" || files[0].VariantID != "99" || files[0].TestMode {
		t.Errorf("file 0 = %+v", files[0])
	}
	if !files[1].IsDraft() || !files[1].TestMode || files[1].VariantID != "99" {
		t.Errorf("file 1 = %+v", files[1])
	}
}

func TestListFollowsNextLink(t *testing.T) {
	var srvURL string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page[number]") == "2" {
			fmt.Fprint(w, `{"data":[{"type":"variants","id":"v2","attributes":{"product_id":5,"name":"B"}}],"links":{}}`)
			return
		}
		fmt.Fprintf(w, `{"data":[{"type":"variants","id":"v1","attributes":{"product_id":5,"name":"A","is_subscription":true}}],"links":{"next":"%s/variants?page[number]=2"}}`, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := New(Config{APIKey: "key", BaseURL: srv.URL})
	variants, err := c.ListVariants(context.Background(), "5")
	if err != nil {
		t.Fatalf("ListVariants: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 page requests, got %d", calls)
	}
	if len(variants) != 2 || variants[0].ID != "v1" || variants[1].ID != "v2" {
		t.Fatalf("variants = %+v", variants)
	}
	if variants[0].Interval != "month" || variants[0].IntervalCount != 1 {
		t.Errorf("subscription defaults not applied: %+v", variants[0])
	}
	if variants[0].ProductID != "5" {
		t.Errorf("product id = %q", variants[0].ProductID)
	}
}

func TestListOrderItemsReadsIncluded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("filter[user_email]") != "a@b.c" || q.Get("include") != "order-items" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, `{"data":[{"type":"orders","id":"100","attributes":{}}],
			"included":[
				{"type":"order-items","id":"1","attributes":{"order_id":100,"product_id":5,"variant_id":9,"product_name":"Math"}},
				{"type":"customers","id":"3","attributes":{}}
			]}`)
	})

	items, err := c.ListOrderItems(context.Background(), "a@b.c")
	if err != nil {
		t.Fatalf("ListOrderItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	want := provider.OrderItem{OrderID: "100", ProductID: "5", VariantID: "9", ProductName: "Math"}
	if items[0] != want {
		t.Errorf("got %+v, want %+v", items[0], want)
	}
}

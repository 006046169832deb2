package observability_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/fulfillment/delivery"
	"github.com/xraph/fulfillment/observability"
	"github.com/xraph/fulfillment/order"
)

type counter struct{ n float64 }

func (c *counter) Inc()          { c.n++ }
func (c *counter) Add(v float64) { c.n += v }

type histogram struct{ obs []float64 }

func (h *histogram) Observe(v float64) { h.obs = append(h.obs, v) }

type fakeFactory struct {
	counters   map[string]*counter
	histograms map[string]*histogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{counters: map[string]*counter{}, histograms: map[string]*histogram{}}
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	c := &counter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	h := &histogram{}
	f.histograms[name] = h
	return h
}

func TestMetricsExtensionCounts(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	rec := &order.ProcessedOrder{OrderID: "1", MatchedBy: order.MatchedByCartRef}
	_ = m.OnWebhookReceived(ctx, "lemon-squeezy", &order.WebhookEvent{TestMode: true})
	_ = m.OnOrderReconciled(ctx, rec, make([]order.LineItem, 2), &order.WebhookEvent{})
	_ = m.OnOrderDuplicate(ctx, "1")
	_ = m.OnPendingEvicted(ctx, 4, time.Now())
	_ = m.OnDownloadPackaged(ctx, "p", string(delivery.KindBundle), 3, 120*time.Millisecond)

	tests := []struct {
		name string
		want float64
	}{
		{"fulfillment.webhook.received", 1},
		{"fulfillment.webhook.test_mode", 1},
		{"fulfillment.order.reconciled", 1},
		{"fulfillment.order.matched_by.cart_ref", 1},
		{"fulfillment.order.matched_by.oldest_pending", 0},
		{"fulfillment.order.duplicate", 1},
		{"fulfillment.pending.evicted", 4},
		{"fulfillment.download.bundled", 1},
		{"fulfillment.download.streamed", 0},
	}
	for _, tt := range tests {
		if got := f.counters[tt.name].n; got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
	if obs := f.histograms["fulfillment.download.latency_ms"].obs; len(obs) != 1 || obs[0] != 120 {
		t.Errorf("latency observations = %v", obs)
	}
}

func TestPrometheusFactoryExposition(t *testing.T) {
	f := observability.NewPrometheusFactory()
	m := observability.NewMetricsExtension(f)
	_ = m.OnOrderDuplicate(context.Background(), "1")

	// Same name twice returns the registered collector instead of panicking.
	f.Counter("fulfillment.order.duplicate").Inc()

	rec := httptest.NewRecorder()
	f.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "fulfillment_order_duplicate 2") {
		t.Errorf("exposition missing duplicate counter:\n%s", body)
	}
}

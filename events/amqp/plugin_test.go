package amqp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/fulfillment/events/amqp"
	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
)

type message struct {
	key  string
	body []byte
}

type fakePublisher struct {
	msgs   []message
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, key string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	f.msgs = append(f.msgs, message{key: key, body: b})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestPluginPublishesLifecycle(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	p := amqp.NewPlugin(pub)

	pending := order.NewPendingOrder("chk_1", id.NewCartRef(), []order.LineItem{{ID: "a", Title: "A", Price: "$1.00"}})
	rec := order.NewProcessedOrder("901", order.EventOrderCreated)
	rec.MatchedBy = order.MatchedByCartRef

	if err := p.OnCheckoutCreated(ctx, pending, "https://pay.example/1"); err != nil {
		t.Fatal(err)
	}
	if err := p.OnPendingEvicted(ctx, 0, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := p.OnOrderReconciled(ctx, rec, pending.Items, &order.WebhookEvent{CustomerEmail: "b@example.com", TotalFormatted: "$1.00"}); err != nil {
		t.Fatal(err)
	}
	if err := p.OnNotifyFailed(ctx, "902", errors.New("smtp down")); err != nil {
		t.Fatal(err)
	}

	keys := []string{amqp.RoutingCheckoutCreated, amqp.RoutingOrderReconciled, amqp.RoutingNotifyFailed}
	if len(pub.msgs) != len(keys) {
		t.Fatalf("published %d messages, want %d (empty evictions are skipped)", len(pub.msgs), len(keys))
	}
	for i, k := range keys {
		if pub.msgs[i].key != k {
			t.Errorf("msg[%d] key = %s, want %s", i, pub.msgs[i].key, k)
		}
	}

	var got amqp.OrderReconciled
	if err := json.Unmarshal(pub.msgs[1].body, &got); err != nil {
		t.Fatal(err)
	}
	if got.OrderID != "901" || got.MatchedBy != order.MatchedByCartRef || len(got.Items) != 1 {
		t.Errorf("reconciled payload = %+v", got)
	}

	if err := p.OnShutdown(ctx); err != nil || !pub.closed {
		t.Error("shutdown should close the publisher")
	}
}

package lemonsqueezy

import (
	"errors"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/order"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"meta": {
			"event_name": "order_created",
			"custom_data": {"cart_ref": "cart_01h455vb4pex5vsknk084sn02q", "item_count": 2, "items": [{"id":"a"}]}
		},
		"data": {
			"type": "orders",
			"id": 901,
			"attributes": {
				"identifier": "104e18a2-d755-4d4b-80c4-a6c1dcbe1c10",
				"order_number": 1001,
				"user_name": "Ada",
				"user_email": "ada@example.com",
				"total_formatted": "$15.00",
				"test_mode": true,
				"first_order_item": {"product_name": "Your Order (2 items)"},
				"urls": {"receipt": "https://app.example/receipt/1"}
			}
		}
	}`)

	e, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"event", e.EventName, order.EventOrderCreated},
		{"order id", e.OrderID, "901"},
		{"identifier", e.OrderIdentifier, "104e18a2-d755-4d4b-80c4-a6c1dcbe1c10"},
		{"order number", e.OrderNumber, "1001"},
		{"email", e.CustomerEmail, "ada@example.com"},
		{"name", e.CustomerName, "Ada"},
		{"total", e.TotalFormatted, "$15.00"},
		{"product", e.ProductName, "Your Order (2 items)"},
		{"receipt", e.ReceiptURL, "https://app.example/receipt/1"},
		{"cart ref", e.CartRef(), "cart_01h455vb4pex5vsknk084sn02q"},
		{"nested custom data", e.CustomData[order.CustomDataItems], `[{"id":"a"}]`},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if e.ItemCountHint != 2 {
		t.Errorf("ItemCountHint = %d, want 2", e.ItemCountHint)
	}
	if !e.TestMode {
		t.Error("TestMode should be read from the order attributes")
	}
	if e.DeliveryID.IsNil() {
		t.Error("DeliveryID should be assigned")
	}
}

func TestParseWebhookRejectsMalformed(t *testing.T) {
	for _, body := range []string{`{not json`, `{"meta":{}}`} {
		if _, err := ParseWebhook([]byte(body)); !errors.Is(err, fulfillment.ErrInvalidInput) {
			t.Errorf("ParseWebhook(%s) = %v, want ErrInvalidInput", body, err)
		}
	}
}

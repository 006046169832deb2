package lemonsqueezy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
)

// ProviderName identifies Lemon Squeezy in hooks and logs.
const ProviderName = "lemon-squeezy"

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

type webhookPayload struct {
	Meta struct {
		EventName  string                     `json:"event_name"`
		TestMode   bool                       `json:"test_mode"`
		CustomData map[string]json.RawMessage `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string `json:"type"`
		ID         flexID `json:"id"`
		Attributes struct {
			Identifier     string `json:"identifier"`
			OrderNumber    flexID `json:"order_number"`
			UserName       string `json:"user_name"`
			UserEmail      string `json:"user_email"`
			TotalFormatted string `json:"total_formatted"`
			TestMode       bool   `json:"test_mode"`
			FirstOrderItem struct {
				ProductName string `json:"product_name"`
				VariantName string `json:"variant_name"`
				Quantity    int    `json:"quantity"`
			} `json:"first_order_item"`
			URLs struct {
				Receipt string `json:"receipt"`
			} `json:"urls"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseWebhook decodes a webhook body into an order.WebhookEvent. Custom
// data values that are not strings are kept as their JSON text.
func ParseWebhook(body []byte) (*order.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fulfillment.ValidationError{Field: "body", Message: fmt.Sprintf("malformed webhook payload: %v", err)}
	}
	if p.Meta.EventName == "" {
		return nil, fulfillment.ValidationError{Field: "meta.event_name", Message: "is required"}
	}

	attrs := p.Data.Attributes
	e := &order.WebhookEvent{
		DeliveryID:      id.NewDeliveryID(),
		EventName:       p.Meta.EventName,
		OrderID:         string(p.Data.ID),
		OrderIdentifier: attrs.Identifier,
		OrderNumber:     string(attrs.OrderNumber),
		CustomerEmail:   attrs.UserEmail,
		CustomerName:    attrs.UserName,
		TotalFormatted:  attrs.TotalFormatted,
		ProductName:     attrs.FirstOrderItem.ProductName,
		ReceiptURL:      attrs.URLs.Receipt,
		CustomData:      flattenCustomData(p.Meta.CustomData),
		TestMode:        p.Meta.TestMode || attrs.TestMode,
		ReceivedAt:      time.Now().UTC(),
	}
	if n, err := strconv.Atoi(e.CustomData[order.CustomDataItemCount]); err == nil {
		e.ItemCountHint = n
	}
	return e, nil
}

func flattenCustomData(raw map[string]json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		var s string
		if len(v) > 0 && v[0] == '"' && json.Unmarshal(v, &s) == nil {
			out[k] = s
			continue
		}
		out[k] = strings.TrimSpace(string(v))
	}
	return out
}

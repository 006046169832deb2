package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/types"
)

// timeLayout is fixed-width so TEXT timestamps compare in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s) //nolint:errcheck // zero time on garbage
	}
	return t
}

// ==================== Pending order models ====================

type pendingOrderModel struct {
	grove.BaseModel `grove:"table:fulfillment_pending_orders"`

	CheckoutKey string `grove:"checkout_key,pk"`
	CartRef     string `grove:"cart_ref"`
	Items       string `grove:"items"`
	CreatedAt   string `grove:"created_at"`
	UpdatedAt   string `grove:"updated_at"`
}

func toPendingOrderModel(p *order.PendingOrder) *pendingOrderModel {
	items, _ := json.Marshal(p.Items) //nolint:errcheck // plain structs always marshal

	created := p.CreatedAt
	if created.IsZero() {
		created = now()
	}
	return &pendingOrderModel{
		CheckoutKey: p.Key,
		CartRef:     p.CartRef.String(),
		Items:       string(items),
		CreatedAt:   formatTime(created),
		UpdatedAt:   formatTime(now()),
	}
}

func fromPendingOrderModel(m *pendingOrderModel) (*order.PendingOrder, error) {
	var ref id.CartRef
	if m.CartRef != "" {
		parsed, err := id.ParseCartRef(m.CartRef)
		if err != nil {
			return nil, err
		}
		ref = parsed
	}

	items, err := decodeItems(m.Items)
	if err != nil {
		return nil, err
	}

	return &order.PendingOrder{
		Key:     m.CheckoutKey,
		CartRef: ref,
		Items:   items,
		Entity: types.Entity{
			CreatedAt: parseTime(m.CreatedAt),
			UpdatedAt: parseTime(m.UpdatedAt),
		},
	}, nil
}

func decodeItems(raw string) ([]order.LineItem, error) {
	items := []order.LineItem{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ==================== Processed order models ====================

type processedOrderModel struct {
	grove.BaseModel `grove:"table:fulfillment_processed_orders"`

	OrderID     string `grove:"order_id,pk"`
	ID          string `grove:"id"`
	EventName   string `grove:"event_name"`
	MatchedBy   string `grove:"matched_by"`
	PendingKey  string `grove:"pending_key"`
	ItemCount   int    `grove:"item_count"`
	ProcessedAt string `grove:"processed_at"`
}

func toProcessedOrderModel(p *order.ProcessedOrder) *processedOrderModel {
	processed := p.ProcessedAt
	if processed.IsZero() {
		processed = now()
	}
	return &processedOrderModel{
		OrderID:     p.OrderID,
		ID:          p.ID.String(),
		EventName:   p.EventName,
		MatchedBy:   string(p.MatchedBy),
		PendingKey:  p.PendingKey,
		ItemCount:   p.ItemCount,
		ProcessedAt: formatTime(processed),
	}
}

func fromProcessedOrderModel(m *processedOrderModel) (*order.ProcessedOrder, error) {
	var recID id.ProcessedID
	if m.ID != "" {
		parsed, err := id.ParseProcessedID(m.ID)
		if err != nil {
			return nil, err
		}
		recID = parsed
	}

	return &order.ProcessedOrder{
		ID:          recID,
		OrderID:     m.OrderID,
		EventName:   m.EventName,
		MatchedBy:   order.MatchedBy(m.MatchedBy),
		PendingKey:  m.PendingKey,
		ItemCount:   m.ItemCount,
		ProcessedAt: parseTime(m.ProcessedAt),
	}, nil
}

// ==================== Analytics models ====================

type visitDayModel struct {
	grove.BaseModel `grove:"table:fulfillment_visit_days"`

	Day   string `grove:"day,pk"`
	Views int64  `grove:"views"`
}

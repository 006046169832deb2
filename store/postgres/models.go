package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/types"
)

// ==================== Pending order models ====================

type pendingOrderModel struct {
	grove.BaseModel `grove:"table:fulfillment_pending_orders"`

	CheckoutKey string          `grove:"checkout_key,pk"`
	CartRef     string          `grove:"cart_ref"`
	Items       json.RawMessage `grove:"items,type:jsonb"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toPendingOrderModel(p *order.PendingOrder) *pendingOrderModel {
	items, _ := json.Marshal(p.Items) //nolint:errcheck // plain structs always marshal

	return &pendingOrderModel{
		CheckoutKey: p.Key,
		CartRef:     p.CartRef.String(),
		Items:       items,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
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

	items := []order.LineItem{}
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return nil, err
		}
	}

	return &order.PendingOrder{
		Key:     m.CheckoutKey,
		CartRef: ref,
		Items:   items,
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
	}, nil
}

// ==================== Processed order models ====================

type processedOrderModel struct {
	grove.BaseModel `grove:"table:fulfillment_processed_orders"`

	OrderID     string    `grove:"order_id,pk"`
	ID          string    `grove:"id"`
	EventName   string    `grove:"event_name"`
	MatchedBy   string    `grove:"matched_by"`
	PendingKey  string    `grove:"pending_key"`
	ItemCount   int       `grove:"item_count"`
	ProcessedAt time.Time `grove:"processed_at"`
}

func toProcessedOrderModel(p *order.ProcessedOrder) *processedOrderModel {
	return &processedOrderModel{
		OrderID:     p.OrderID,
		ID:          p.ID.String(),
		EventName:   p.EventName,
		MatchedBy:   string(p.MatchedBy),
		PendingKey:  p.PendingKey,
		ItemCount:   p.ItemCount,
		ProcessedAt: p.ProcessedAt,
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
		ProcessedAt: m.ProcessedAt,
	}, nil
}

// ==================== Analytics models ====================

type visitDayModel struct {
	grove.BaseModel `grove:"table:fulfillment_visit_days"`

	Day   string `grove:"day,pk"`
	Views int64  `grove:"views"`
}

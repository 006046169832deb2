package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/types"
)

// ==================== Pending order models ====================

type pendingOrderModel struct {
	grove.BaseModel `grove:"table:fulfillment_pending_orders"`

	CheckoutKey string          `grove:"checkout_key,pk" bson:"_id"`
	CartRef     string          `grove:"cart_ref"        bson:"cart_ref"`
	Items       []lineItemModel `grove:"items"           bson:"items"`
	CreatedAt   time.Time       `grove:"created_at"      bson:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"      bson:"updated_at"`
}

type lineItemModel struct {
	ID    string `bson:"id"`
	Title string `bson:"title"`
	Price string `bson:"price"`
}

func toPendingOrderModel(p *order.PendingOrder) *pendingOrderModel {
	items := make([]lineItemModel, len(p.Items))
	for i, it := range p.Items {
		items[i] = lineItemModel{ID: it.ID, Title: it.Title, Price: it.Price}
	}
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
	return &order.PendingOrder{
		Key:     m.CheckoutKey,
		CartRef: ref,
		Items:   fromLineItemModels(m.Items),
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
	}, nil
}

func fromLineItemModels(models []lineItemModel) []order.LineItem {
	items := make([]order.LineItem, len(models))
	for i, m := range models {
		items[i] = order.LineItem{ID: m.ID, Title: m.Title, Price: m.Price}
	}
	return items
}

// ==================== Processed order models ====================

type processedOrderModel struct {
	grove.BaseModel `grove:"table:fulfillment_processed_orders"`

	OrderID     string    `grove:"order_id,pk"  bson:"_id"`
	ID          string    `grove:"id"           bson:"record_id"`
	EventName   string    `grove:"event_name"   bson:"event_name"`
	MatchedBy   string    `grove:"matched_by"   bson:"matched_by"`
	PendingKey  string    `grove:"pending_key"  bson:"pending_key"`
	ItemCount   int       `grove:"item_count"   bson:"item_count"`
	ProcessedAt time.Time `grove:"processed_at" bson:"processed_at"`
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

// visitDayModel keeps the day's view counter and its distinct visitor hashes
// in one document.
type visitDayModel struct {
	grove.BaseModel `grove:"table:fulfillment_visit_days"`

	Day      string   `grove:"day,pk"   bson:"_id"`
	Views    int64    `grove:"views"    bson:"views"`
	Visitors []string `grove:"visitors" bson:"visitors"`
}

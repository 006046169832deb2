package reconcile

import (
	"context"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/order"
)

// Matcher finds and consumes the pending cart of a webhook event. It returns
// nil when it has no match. A returned entry has already been taken from the
// ledger.
type Matcher struct {
	Name  order.MatchedBy
	Match func(ctx context.Context, s Store, e *order.WebhookEvent) (*order.PendingOrder, error)
}

// ByCartRef matches the cart reference the checkout sent as custom data.
func ByCartRef() Matcher {
	return Matcher{
		Name: order.MatchedByCartRef,
		Match: func(ctx context.Context, s Store, e *order.WebhookEvent) (*order.PendingOrder, error) {
			ref := e.CartRef()
			if ref == "" {
				return nil, nil
			}
			entries, err := s.ListPending(ctx)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				if entry.CartRef.String() == ref {
					return takeEntry(ctx, s, entry)
				}
			}
			return nil, nil
		},
	}
}

// ByKey takes the ledger entry stored under the key picked from the event.
// The entry is read before it is taken so a restore puts back its original
// cart reference and creation time.
func ByKey(name order.MatchedBy, key func(e *order.WebhookEvent) string) Matcher {
	return Matcher{
		Name: name,
		Match: func(ctx context.Context, s Store, e *order.WebhookEvent) (*order.PendingOrder, error) {
			k := key(e)
			if k == "" {
				return nil, nil
			}
			entry, err := s.GetPending(ctx, k)
			if err != nil {
				if fulfillment.IsNotFound(err) {
					return nil, nil
				}
				return nil, err
			}
			return takeEntry(ctx, s, entry)
		},
	}
}

// ByOrderIdentifier takes the entry keyed by the order's identifier.
func ByOrderIdentifier() Matcher {
	return ByKey(order.MatchedByOrderIdentifier, func(e *order.WebhookEvent) string { return e.OrderIdentifier })
}

// ByOrderID takes the entry keyed by the order id.
func ByOrderID() Matcher {
	return ByKey(order.MatchedByOrderID, func(e *order.WebhookEvent) string { return e.OrderID })
}

// OldestPending takes the oldest entry in the ledger. It is a heuristic:
// with several checkouts pending at once it can attribute the wrong cart.
func OldestPending() Matcher {
	return Matcher{
		Name: order.MatchedByOldestPending,
		Match: func(ctx context.Context, s Store, _ *order.WebhookEvent) (*order.PendingOrder, error) {
			entries, err := s.ListPending(ctx)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				p, err := takeEntry(ctx, s, entry)
				if err != nil || p != nil {
					return p, err
				}
			}
			return nil, nil
		},
	}
}

// DefaultMatchers returns the cascade used by New. The oldest-pending
// fallback is included unless strict is set.
func DefaultMatchers(strict bool) []Matcher {
	m := []Matcher{ByCartRef(), ByOrderIdentifier(), ByOrderID()}
	if !strict {
		m = append(m, OldestPending())
	}
	return m
}

// takeEntry consumes entry; nil when another request took it first.
func takeEntry(ctx context.Context, s Store, entry *order.PendingOrder) (*order.PendingOrder, error) {
	items, err := s.TakePending(ctx, entry.Key)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	taken := *entry
	taken.Items = items
	return &taken, nil
}

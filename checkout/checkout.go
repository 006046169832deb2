// Package checkout turns a storefront cart into a hosted provider checkout
// and records the cart in the pending-order ledger so the order webhook can
// be reconciled with it later.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
	"github.com/xraph/fulfillment/provider"
	"github.com/xraph/fulfillment/types"
)

// Creator opens hosted checkouts. provider.Provider satisfies it.
type Creator interface {
	CreateCheckout(ctx context.Context, req *provider.CheckoutRequest) (*provider.Checkout, error)
}

// Request is the cart submitted by the storefront.
type Request struct {
	Items []order.CartItem `json:"items"`
}

// Result is returned to the storefront after a checkout is opened.
type Result struct {
	CheckoutURL string      `json:"checkoutUrl"`
	CheckoutID  string      `json:"checkoutId"`
	Total       types.Money `json:"-"`
	ItemCount   int         `json:"itemCount"`
	CartRef     id.CartRef  `json:"-"`
}

// Service creates checkouts.
type Service struct {
	creator     Creator
	ledger      order.PendingStore
	plugins     *plugin.Registry
	logger      *slog.Logger
	redirectURL string
}

// Option configures a Service.
type Option func(*Service)

// WithRedirectURL sets the page the buyer lands on after paying.
func WithRedirectURL(u string) Option {
	return func(s *Service) { s.redirectURL = u }
}

// WithPlugins sets the plugin registry that receives checkout hooks.
func WithPlugins(reg *plugin.Registry) Option {
	return func(s *Service) { s.plugins = reg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a checkout Service.
func New(creator Creator, ledger order.PendingStore, opts ...Option) *Service {
	s := &Service{
		creator: creator,
		ledger:  ledger,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.plugins == nil {
		s.plugins = plugin.NewRegistry().WithLogger(s.logger)
	}
	return s
}

// Create opens a single custom-priced checkout covering every cart item and
// stores the cart under the provider's checkout id.
func (s *Service) Create(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, fulfillment.ValidationError{Field: "items", Message: "cart is empty"}
	}

	total := Total(req.Items)
	if total.IsNegative() {
		return nil, fulfillment.ValidationError{Field: "items", Message: "total must not be negative"}
	}

	ref := id.NewCartRef()
	items := make([]order.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.LineItem()
	}

	co, err := s.creator.CreateCheckout(ctx, &provider.CheckoutRequest{
		CustomPrice: total,
		Name:        Name(len(items)),
		Description: Description(items, total),
		RedirectURL: s.redirectURL,
		Custom: map[string]any{
			order.CustomDataCartRef:   ref.String(),
			order.CustomDataItemCount: strconv.Itoa(len(items)),
			order.CustomDataItems:     items,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: create: %w", err)
	}

	pending := order.NewPendingOrder(co.ID, ref, items)
	if err := s.ledger.PutPending(ctx, pending); err != nil {
		return nil, fmt.Errorf("checkout: record pending order %s: %w", co.ID, err)
	}

	s.logger.Info("checkout created",
		"checkout_id", co.ID,
		"cart_ref", ref.String(),
		"items", len(items),
		"total", total.String(),
	)
	s.plugins.EmitCheckoutCreated(ctx, pending, co.URL)

	return &Result{
		CheckoutURL: co.URL,
		CheckoutID:  co.ID,
		Total:       total,
		ItemCount:   len(items),
		CartRef:     ref,
	}, nil
}

// Total sums the cart in major units and rounds once to cents.
func Total(items []order.CartItem) types.Money {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Major())
	}
	return types.FromMajor(sum, "usd")
}

// Name is the product name shown on the hosted checkout.
func Name(count int) string {
	return fmt.Sprintf("Your Order (%d items)", count)
}

// Description itemizes the cart for the hosted checkout page.
func Description(items []order.LineItem, total types.Money) string {
	var b strings.Builder
	b.WriteString("Your Order:\n\n")
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s - %s", it.Title, it.Price)
	}
	fmt.Fprintf(&b, "\n\nTotal: %s", total.String())
	return b.String()
}

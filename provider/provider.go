// Package provider defines the payment-provider operations the fulfillment
// pipeline depends on. The Lemon Squeezy implementation lives in
// provider/lemonsqueezy; tests substitute in-memory fakes.
package provider

import (
	"context"

	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/types"
)

// Provider is the outbound surface of the payment provider.
type Provider interface {
	// CreateCheckout opens a hosted checkout and returns its id and URL.
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error)

	// ListProducts returns the store's products.
	ListProducts(ctx context.Context) ([]Product, error)

	// ListVariants returns the variants of a product, in provider order.
	ListVariants(ctx context.Context, productID string) ([]Variant, error)

	// ListFiles returns files matching the filter, in provider order.
	// A zero filter lists every file in the store.
	ListFiles(ctx context.Context, filter FileFilter) ([]asset.FileDescriptor, error)

	// ListOrderItems returns the order items bought by email.
	ListOrderItems(ctx context.Context, email string) ([]OrderItem, error)
}

// CheckoutRequest describes a single-line custom-priced checkout.
type CheckoutRequest struct {
	CustomPrice types.Money
	Name        string
	Description string
	RedirectURL string
	Custom      map[string]any
}

// Checkout is a created hosted checkout.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Product is a catalog entry as returned by the provider.
type Product struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PriceFormatted string `json:"price_formatted"`
	ThumbURL       string `json:"thumb_url,omitempty"`
	LargeThumbURL  string `json:"large_thumb_url,omitempty"`
	BuyNowURL      string `json:"buy_now_url,omitempty"`
	Status         string `json:"status,omitempty"`
}

// Variant is a purchasable option of a product.
type Variant struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Status         string `json:"status,omitempty"`
	IsSubscription bool   `json:"is_subscription"`
	Interval       string `json:"interval,omitempty"`
	IntervalCount  int    `json:"interval_count,omitempty"`
}

// FileFilter restricts a file listing to one product or one variant.
type FileFilter struct {
	ProductID string
	VariantID string
}

// OrderItem is one line of a past order.
type OrderItem struct {
	OrderID     string `json:"orderId"`
	ProductID   string `json:"productId"`
	VariantID   string `json:"variantId"`
	ProductName string `json:"productName"`
}

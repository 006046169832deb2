// Package providertest provides an in-memory provider.Provider for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/provider"
)

// Compile-time interface check.
var _ provider.Provider = (*Fake)(nil)

// Fake is a scriptable provider. Zero value is ready to use.
type Fake struct {
	mu sync.Mutex

	Products   []provider.Product
	Variants   map[string][]provider.Variant
	Files      []asset.FileDescriptor
	OrderItems map[string][]provider.OrderItem

	// Err, when set, is returned by every call.
	Err error

	Checkouts []*provider.CheckoutRequest
	seq       int
}

// CreateCheckout records req and returns a sequential checkout id.
func (f *Fake) CreateCheckout(_ context.Context, req *provider.CheckoutRequest) (*provider.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.seq++
	f.Checkouts = append(f.Checkouts, req)
	id := fmt.Sprintf("chk-%d", f.seq)
	return &provider.Checkout{ID: id, URL: "https://pay.example/checkout/" + id}, nil
}

// LastCheckout returns the most recent checkout request.
func (f *Fake) LastCheckout() *provider.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Checkouts) == 0 {
		return nil
	}
	return f.Checkouts[len(f.Checkouts)-1]
}

// ListProducts returns Products.
func (f *Fake) ListProducts(context.Context) ([]provider.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Products, f.Err
}

// ListVariants returns Variants[productID].
func (f *Fake) ListVariants(_ context.Context, productID string) ([]provider.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Variants[productID], f.Err
}

// ListFiles filters Files by product or variant id.
func (f *Fake) ListFiles(_ context.Context, filter provider.FileFilter) ([]asset.FileDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []asset.FileDescriptor
	for _, file := range f.Files {
		switch {
		case filter.ProductID != "" && file.ProductID != filter.ProductID:
		case filter.VariantID != "" && file.VariantID != filter.VariantID:
		default:
			out = append(out, file)
		}
	}
	return out, nil
}

// ListOrderItems returns OrderItems[email].
func (f *Fake) ListOrderItems(_ context.Context, email string) ([]provider.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.OrderItems[email], f.Err
}

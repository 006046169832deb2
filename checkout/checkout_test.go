package checkout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/checkout"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/provider"
	"github.com/xraph/fulfillment/store/memory"
)

type fakeCreator struct {
	got *provider.CheckoutRequest
	err error
}

func (f *fakeCreator) CreateCheckout(_ context.Context, req *provider.CheckoutRequest) (*provider.Checkout, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Checkout{ID: "chk_abc", URL: "https://shop.example/checkout/chk_abc"}, nil
}

func TestTotalIsExactCents(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   int64
	}{
		{"single", []float64{29.00}, 2900},
		{"float artifacts", []float64{0.1, 0.2}, 30},
		{"three cheap items", []float64{9.99, 9.99, 9.99}, 2997},
		{"mixed", []float64{10.00, 5.00}, 1500},
		{"rounded once after summing", []float64{0.005, 0.005, 0.004}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]order.CartItem, len(tt.prices))
			for i, p := range tt.prices {
				items[i] = order.CartItem{PriceValue: p}
			}
			if got := checkout.Total(items).Amount; got != tt.want {
				t.Errorf("Total = %d cents, want %d", got, tt.want)
			}
		})
	}
}

func TestCreateRecordsPendingOrder(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	creator := &fakeCreator{}
	svc := checkout.New(creator, ledger, checkout.WithRedirectURL("https://shop.example/thank-you"))

	res, err := svc.Create(ctx, &checkout.Request{Items: []order.CartItem{
		{ID: "p1", Title: "Math Pack", Price: "$10.00", PriceValue: 10},
		{ID: "p2", Title: "Phonics", Price: "$5.00", PriceValue: 5},
	}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if res.CheckoutID != "chk_abc" || res.ItemCount != 2 || res.Total.String() != "$15.00" {
		t.Errorf("result = %+v", res)
	}

	req := creator.got
	if req.CustomPrice.Amount != 1500 {
		t.Errorf("custom price = %d, want 1500", req.CustomPrice.Amount)
	}
	if req.Name != "Your Order (2 items)" {
		t.Errorf("name = %q", req.Name)
	}
	wantDesc := "Your Order:\n\n• Math Pack - $10.00\n• Phonics - $5.00\n\nTotal: $15.00"
	if req.Description != wantDesc {
		t.Errorf("description = %q, want %q", req.Description, wantDesc)
	}
	if req.RedirectURL != "https://shop.example/thank-you" {
		t.Errorf("redirect = %q", req.RedirectURL)
	}
	if req.Custom[order.CustomDataCartRef] != res.CartRef.String() {
		t.Errorf("custom cart_ref = %v, want %s", req.Custom[order.CustomDataCartRef], res.CartRef)
	}

	pending, err := ledger.GetPending(ctx, "chk_abc")
	if err != nil {
		t.Fatalf("pending order not recorded: %v", err)
	}
	if len(pending.Items) != 2 || pending.CartRef.String() != res.CartRef.String() {
		t.Errorf("pending = %+v", pending)
	}
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	svc := checkout.New(&fakeCreator{}, memory.New())
	_, err := svc.Create(context.Background(), &checkout.Request{})
	if !errors.Is(err, fulfillment.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateProviderFailureLeavesLedgerEmpty(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	creator := &fakeCreator{err: &fulfillment.ConfigError{Operation: "checkout", Missing: []string{"LEMON_SQUEEZY_API_KEY"}}}
	svc := checkout.New(creator, ledger)

	_, err := svc.Create(ctx, &checkout.Request{Items: []order.CartItem{{ID: "p1", PriceValue: 1}}})
	if !errors.Is(err, fulfillment.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if entries, _ := ledger.ListPending(ctx); len(entries) != 0 {
		t.Errorf("ledger has %d entries after a failed checkout", len(entries))
	}
}

package fulfillment_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/engine"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/provider/providertest"
	"github.com/xraph/fulfillment/store/file"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		s, err := file.Open(t.TempDir())
		if err != nil {
			t.Fatalf("open store: %v", err)
		}

		eng := engine.New(s,
			engine.WithConfig(config.DefaultConfig()),
			engine.WithProvider(&providertest.Fake{}),
			engine.WithLogger(slog.New(slog.DiscardHandler)),
		)
		if err := eng.Start(ctx); err != nil {
			t.Fatalf("start: %v", err)
		}
		defer eng.Stop() //nolint:errcheck // test cleanup

		res, err := eng.Checkout(ctx, []order.CartItem{{ID: "1", Title: "Phonics Pack", Price: "$4.50", PriceValue: 4.5}})
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if res.Total.String() != "$4.50" {
			t.Errorf("total = %s", res.Total)
		}
	})

	t.Run("ErrorMatching", func(t *testing.T) {
		err := &fulfillment.TestModeError{Reference: "42", FileNames: []string{"guide.pdf"}}
		if !errors.Is(err, fulfillment.ErrTestMode) {
			t.Error("TestModeError should match ErrTestMode")
		}
		var tm *fulfillment.TestModeError
		if !errors.As(error(err), &tm) || tm.FileNames[0] != "guide.pdf" {
			t.Error("errors.As should expose the file names")
		}
	})
}

package resolver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/provider"
	"github.com/xraph/fulfillment/resolver"
)

type fakeSource struct {
	byProduct map[string][]asset.FileDescriptor
	byVariant map[string][]asset.FileDescriptor
	variants  map[string][]provider.Variant
	failFiles bool
	calls     []string
}

func (f *fakeSource) ListFiles(_ context.Context, filter provider.FileFilter) ([]asset.FileDescriptor, error) {
	if filter.ProductID != "" {
		f.calls = append(f.calls, "files:product:"+filter.ProductID)
		if f.failFiles {
			return nil, errors.New("boom")
		}
		return f.byProduct[filter.ProductID], nil
	}
	f.calls = append(f.calls, "files:variant:"+filter.VariantID)
	return f.byVariant[filter.VariantID], nil
}

func (f *fakeSource) ListVariants(_ context.Context, productID string) ([]provider.Variant, error) {
	f.calls = append(f.calls, "variants:"+productID)
	return f.variants[productID], nil
}

func quiet() resolver.Option {
	return resolver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func file(name string, testMode bool, status asset.Status) asset.FileDescriptor {
	return asset.FileDescriptor{ID: name, Name: name, TestMode: testMode, Status: status}
}

func TestResolveCascade(t *testing.T) {
	tests := []struct {
		name         string
		src          *fakeSource
		wantStrategy string
		wantFiles    []string
		wantCalls    int
	}{
		{
			name: "product match stops the cascade",
			src: &fakeSource{byProduct: map[string][]asset.FileDescriptor{
				"42": {file("a.pdf", false, asset.StatusPublished)},
			}},
			wantStrategy: resolver.StrategyProduct,
			wantFiles:    []string{"a.pdf"},
			wantCalls:    1,
		},
		{
			name: "variant-only files are found by the second step",
			src: &fakeSource{byVariant: map[string][]asset.FileDescriptor{
				"42": {file("v.pdf", false, asset.StatusPublished), file("w.pdf", false, asset.StatusPublished)},
			}},
			wantStrategy: resolver.StrategyVariant,
			wantFiles:    []string{"v.pdf", "w.pdf"},
			wantCalls:    2,
		},
		{
			name: "first variant of the product",
			src: &fakeSource{
				variants: map[string][]provider.Variant{"42": {{ID: "7"}, {ID: "8"}}},
				byVariant: map[string][]asset.FileDescriptor{
					"7": {file("first.zip", false, asset.StatusPublished)},
					"8": {file("second.zip", false, asset.StatusPublished)},
				},
			},
			wantStrategy: resolver.StrategyViaFirstVariant,
			wantFiles:    []string{"first.zip"},
			wantCalls:    4,
		},
		{
			name: "failing product query falls through",
			src: &fakeSource{
				failFiles: true,
				byVariant: map[string][]asset.FileDescriptor{"42": {file("v.pdf", false, asset.StatusPublished)}},
			},
			wantStrategy: resolver.StrategyVariant,
			wantFiles:    []string{"v.pdf"},
			wantCalls:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolver.New(tt.src, quiet())
			res, err := r.Resolve(context.Background(), "42")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", res.Strategy, tt.wantStrategy)
			}
			got := asset.Names(res.Files)
			if len(got) != len(tt.wantFiles) {
				t.Fatalf("files = %v, want %v", got, tt.wantFiles)
			}
			for i := range got {
				if got[i] != tt.wantFiles[i] {
					t.Errorf("files[%d] = %q, want %q", i, got[i], tt.wantFiles[i])
				}
			}
			if len(tt.src.calls) != tt.wantCalls {
				t.Errorf("provider calls = %v, want %d", tt.src.calls, tt.wantCalls)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	r := resolver.New(&fakeSource{}, quiet())

	_, err := r.Resolve(context.Background(), "missing")
	if !errors.Is(err, fulfillment.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, fulfillment.ErrTestMode) {
		t.Error("not found must be distinguishable from test mode")
	}
}

func TestResolveRejectsMixedTestMode(t *testing.T) {
	src := &fakeSource{byProduct: map[string][]asset.FileDescriptor{
		"42": {
			file("live.pdf", false, asset.StatusPublished),
			file("test.pdf", true, asset.StatusPublished),
		},
	}}
	r := resolver.New(src, quiet())

	res, err := r.Resolve(context.Background(), "42")
	if res != nil {
		t.Errorf("expected no partial result, got %+v", res)
	}
	var tme *fulfillment.TestModeError
	if !errors.As(err, &tme) {
		t.Fatalf("err = %v, want *TestModeError", err)
	}
	if len(tme.FileNames) != 2 {
		t.Errorf("FileNames = %v, want both files", tme.FileNames)
	}
	if !errors.Is(err, fulfillment.ErrTestMode) {
		t.Error("TestModeError should match ErrTestMode")
	}
}

func TestResolveDraftWarns(t *testing.T) {
	src := &fakeSource{byProduct: map[string][]asset.FileDescriptor{
		"42": {file("draft.pdf", false, asset.StatusDraft), file("ok.pdf", false, asset.StatusPublished)},
	}}
	r := resolver.New(src, quiet())

	res, err := r.Resolve(context.Background(), "42")
	if err != nil {
		t.Fatalf("draft files must not fail the request: %v", err)
	}
	if len(res.Files) != 2 {
		t.Errorf("files = %d, want 2", len(res.Files))
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", res.Warnings)
	}
}

func TestResolveEmptyReference(t *testing.T) {
	r := resolver.New(&fakeSource{}, quiet())
	if _, err := r.Resolve(context.Background(), "  "); !errors.Is(err, fulfillment.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestFirstSuccessCustomStrategies(t *testing.T) {
	hit := resolver.Strategy{
		Name: "static",
		Find: func(context.Context, string) ([]asset.FileDescriptor, error) {
			return []asset.FileDescriptor{{Name: "s.txt"}}, nil
		},
	}
	miss := resolver.Strategy{
		Name: "miss",
		Find: func(context.Context, string) ([]asset.FileDescriptor, error) { return nil, nil },
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	files, name, err := resolver.FirstSuccess(context.Background(), "x", []resolver.Strategy{miss, hit}, logger)
	if err != nil || name != "static" || len(files) != 1 {
		t.Errorf("FirstSuccess = %v, %q, %v", files, name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := resolver.FirstSuccess(ctx, "x", []resolver.Strategy{hit}, logger); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx err = %v", err)
	}
}

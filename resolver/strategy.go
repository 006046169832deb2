package resolver

import (
	"context"
	"log/slog"

	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/provider"
)

// Source is the part of the provider the resolver queries.
type Source interface {
	ListFiles(ctx context.Context, filter provider.FileFilter) ([]asset.FileDescriptor, error)
	ListVariants(ctx context.Context, productID string) ([]provider.Variant, error)
}

// Finder looks up the files for a reference. An empty result with a nil
// error means the strategy did not match.
type Finder func(ctx context.Context, ref string) ([]asset.FileDescriptor, error)

// Strategy is a named Finder.
type Strategy struct {
	Name string
	Find Finder
}

// Strategy names.
const (
	StrategyProduct         = "product"
	StrategyVariant         = "variant"
	StrategyViaFirstVariant = "first_variant"
)

// ByProduct lists files whose product id equals the reference.
func ByProduct(src Source) Strategy {
	return Strategy{
		Name: StrategyProduct,
		Find: func(ctx context.Context, ref string) ([]asset.FileDescriptor, error) {
			return src.ListFiles(ctx, provider.FileFilter{ProductID: ref})
		},
	}
}

// ByVariant lists files whose variant id equals the reference. Product and
// variant ids share a namespace, so the same reference is tried as both.
func ByVariant(src Source) Strategy {
	return Strategy{
		Name: StrategyVariant,
		Find: func(ctx context.Context, ref string) ([]asset.FileDescriptor, error) {
			return src.ListFiles(ctx, provider.FileFilter{VariantID: ref})
		},
	}
}

// ViaFirstVariant treats the reference as a product id, takes the product's
// first variant and lists that variant's files.
func ViaFirstVariant(src Source) Strategy {
	return Strategy{
		Name: StrategyViaFirstVariant,
		Find: func(ctx context.Context, ref string) ([]asset.FileDescriptor, error) {
			variants, err := src.ListVariants(ctx, ref)
			if err != nil {
				return nil, err
			}
			if len(variants) == 0 {
				return nil, nil
			}
			return src.ListFiles(ctx, provider.FileFilter{VariantID: variants[0].ID})
		},
	}
}

// DefaultStrategies returns the product, variant, first-variant cascade.
func DefaultStrategies(src Source) []Strategy {
	return []Strategy{
		ByProduct(src),
		ByVariant(src),
		ViaFirstVariant(src),
	}
}

// FirstSuccess runs strategies in order and returns the first non-empty
// result with the name of the strategy that produced it. A failing strategy
// is logged and skipped. It returns an empty name when nothing matched; the
// only error it returns is a cancelled context.
func FirstSuccess(ctx context.Context, ref string, strategies []Strategy, logger *slog.Logger) ([]asset.FileDescriptor, string, error) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		files, err := s.Find(ctx, ref)
		if err != nil {
			logger.Warn("resolver: strategy failed",
				"strategy", s.Name,
				"reference", ref,
				"error", err,
			)
			continue
		}
		if len(files) > 0 {
			return files, s.Name, nil
		}
		logger.Debug("resolver: strategy found nothing", "strategy", s.Name, "reference", ref)
	}
	return nil, "", ctx.Err()
}

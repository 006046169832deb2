// Package resolver finds the downloadable files for a purchased product
// reference. References are ambiguous: the same value may be a product id
// or a variant id, and some products only expose files through a variant.
// The resolver therefore runs an ordered list of lookup strategies and keeps
// the first non-empty result, then applies the test-mode and draft policies.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/asset"
)

// Resolution is a resolved, policy-checked file set.
type Resolution struct {
	Reference string
	Strategy  string
	Files     []asset.FileDescriptor
	Warnings  []string
}

// Resolver runs the lookup cascade.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the default cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a Resolver querying src with the default cascade.
func New(src Source, opts ...Option) *Resolver {
	r := &Resolver{
		strategies: DefaultStrategies(src),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the files for ref in provider order.
//
// It fails with ErrNotFound when no strategy matched and with a
// *fulfillment.TestModeError when any matched file is in test mode, even if
// the others are live. Draft files are allowed through with a warning.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resolution, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fulfillment.ValidationError{Field: "productId", Message: "is required"}
	}

	files, strategy, err := FirstSuccess(ctx, ref, r.strategies, r.logger)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		r.logger.Info("resolver: no files found", "reference", ref)
		return nil, fmt.Errorf("%w: no files for %q", fulfillment.ErrNotFound, ref)
	}

	r.logger.Info("resolver: files found",
		"reference", ref,
		"strategy", strategy,
		"count", len(files),
	)

	if asset.AnyTestMode(files) {
		r.logger.Warn("resolver: files are in test mode", "reference", ref, "files", asset.Names(files))
		return nil, &fulfillment.TestModeError{Reference: ref, FileNames: asset.Names(files)}
	}

	res := &Resolution{
		Reference: ref,
		Strategy:  strategy,
		Files:     files,
	}
	for _, name := range asset.Drafts(files) {
		r.logger.Warn("resolver: draft file may fail to download", "reference", ref, "file", name)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s is a draft and may fail to download", name))
	}
	return res, nil
}

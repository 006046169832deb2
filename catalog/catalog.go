// Package catalog builds the storefront product list from the provider,
// falling back to a static inventory when the provider is unreachable or
// not configured.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xraph/fulfillment/provider"
)

// Category groups products on the storefront.
type Category string

const (
	CategoryBundle       Category = "bundle"
	CategorySubscription Category = "subscription"
	CategoryMath         Category = "math"
	CategoryReading      Category = "reading"
	CategoryScience      Category = "science"
	CategoryWriting      Category = "writing"
	CategoryCurriculum   Category = "curriculum"
)

// Product is a storefront listing entry.
type Product struct {
	ID             string   `json:"id"`
	VariantID      string   `json:"variant_id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Price          string   `json:"price"`
	Image          string   `json:"image,omitempty"`
	Category       Category `json:"category"`
	Purchased      bool     `json:"purchased"`
	ContentPath    string   `json:"contentPath,omitempty"`
	BuyURL         string   `json:"buyUrl,omitempty"`
	IsSubscription bool     `json:"is_subscription"`
	Interval       string   `json:"interval,omitempty"`
	IntervalCount  int      `json:"interval_count,omitempty"`
}

// Source lists products and their variants.
type Source interface {
	ListProducts(ctx context.Context) ([]provider.Product, error)
	ListVariants(ctx context.Context, productID string) ([]provider.Variant, error)
}

// Catalog lists products.
type Catalog struct {
	src      Source
	fallback []Product
	logger   *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithFallback replaces the static inventory served when the provider fails.
func WithFallback(products []Product) Option {
	return func(c *Catalog) { c.fallback = products }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// New creates a Catalog. A nil src always serves the fallback inventory.
func New(src Source, opts ...Option) *Catalog {
	c := &Catalog{
		src:      src,
		fallback: MockInventory(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Products returns the live product list. Any provider failure yields the
// fallback inventory instead of an error.
func (c *Catalog) Products(ctx context.Context) []Product {
	if c.src == nil {
		c.logger.Info("catalog: no provider configured, serving mock inventory")
		return c.fallback
	}

	raw, err := c.src.ListProducts(ctx)
	if err != nil {
		c.logger.Warn("catalog: provider listing failed, serving mock inventory", "error", err)
		return c.fallback
	}

	products := make([]Product, 0, len(raw))
	for _, p := range raw {
		if IsCartBundle(p.Name) {
			continue
		}
		products = append(products, c.build(ctx, p))
	}

	c.logger.Debug("catalog: products listed", "count", len(products))
	return products
}

func (c *Catalog) build(ctx context.Context, p provider.Product) Product {
	out := Product{
		ID:          p.ID,
		Title:       p.Name,
		Description: p.Description,
		Price:       p.PriceFormatted,
		Image:       p.LargeThumbURL,
		BuyURL:      p.BuyNowURL,
	}
	if out.Title == "" {
		out.Title = "Unknown Product"
	}
	if out.Description == "" {
		out.Description = "No description provided."
	}
	if out.Price == "" {
		out.Price = "$0.00"
	}
	if out.Image == "" {
		out.Image = p.ThumbURL
	}

	variants, err := c.src.ListVariants(ctx, p.ID)
	if err != nil {
		c.logger.Warn("catalog: variant lookup failed", "product_id", p.ID, "error", err)
	} else if len(variants) > 0 {
		v := variants[0]
		out.VariantID = v.ID
		if v.IsSubscription {
			out.IsSubscription = true
			out.Interval = v.Interval
			if out.Interval == "" {
				out.Interval = "month"
			}
			out.IntervalCount = v.IntervalCount
			if out.IntervalCount == 0 {
				out.IntervalCount = 1
			}
		}
	}

	out.Category = Categorize(p.Name, p.Description, out.IsSubscription)
	return out
}

// IsCartBundle reports whether name is the internal product that carries
// custom-priced cart checkouts.
func IsCartBundle(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "cart-bundle") || strings.Contains(n, "cart bundle")
}

var subjectKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryMath, []string{"math", "arithmetic", "algebra", "geometry", "counting", "multiplication"}},
	{CategoryReading, []string{"read", "phonics", "literacy", "comprehension", "vocabulary"}},
	{CategoryScience, []string{"science", "biology", "chemistry", "physics", "nature", "experiment"}},
	{CategoryWriting, []string{"writ", "composition", "essay", "grammar", "spelling"}},
}

// Categorize picks a category from the product name and description.
// Bundle names win, then subscriptions, then subject keywords.
func Categorize(name, description string, subscription bool) Category {
	n := strings.ToLower(name)
	if strings.Contains(n, "bundle") || strings.Contains(n, "complete") || strings.Contains(n, "pack") {
		return CategoryBundle
	}
	if subscription {
		return CategorySubscription
	}

	text := n + " " + strings.ToLower(description)
	for _, s := range subjectKeywords {
		for _, kw := range s.keywords {
			if strings.Contains(text, kw) {
				return s.category
			}
		}
	}
	return CategoryCurriculum
}

// MockInventory is the static product list served without a provider.
func MockInventory() []Product {
	return []Product{
		{
			ID:          "prod_123_math_g1",
			Title:       "Grade 1 Math Mastery Bundle",
			Description: "Complete curriculum for Grade 1 Math. Includes 50+ worksheets, interactive quizzes, and progress tracking.",
			Price:       "$29.00",
			Category:    CategoryMath,
			ContentPath: "bundles/math-grade-1.zip",
		},
		{
			ID:          "prod_456_read_g1",
			Title:       "Early Readers Phonics Pack",
			Description: "Comprehensive phonics and reading comprehension worksheets for beginners.",
			Price:       "$24.00",
			Category:    CategoryReading,
			ContentPath: "bundles/reading-grade-1.zip",
		},
		{
			ID:          "prod_789_full_g1",
			Title:       "Complete Grade 1 Curriculum",
			Description: "Get everything! Math, Reading, Writing, and Science for Grade 1. Best value.",
			Price:       "$79.00",
			Category:    CategoryBundle,
			ContentPath: "bundles/grade-1-complete.zip",
		},
	}
}

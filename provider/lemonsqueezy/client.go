// Package lemonsqueezy implements provider.Provider against the Lemon Squeezy
// REST API (JSON:API dialect).
package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/provider"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.lemonsqueezy.com/v1"

const (
	mediaType   = "application/vnd.api+json"
	pageSize    = 100
	maxPages    = 50
	maxErrorLen = 300
)

// Compile-time interface check.
var _ provider.Provider = (*Client)(nil)

// Config holds the credentials and transport settings of a Client.
type Config struct {
	APIKey    string
	StoreID   string
	VariantID string // bundle variant used for custom-priced checkouts
	BaseURL   string
	Timeout   time.Duration

	// RequestsPerSecond caps outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Client is a Lemon Squeezy API client.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client. Missing credentials are reported per operation, not
// here, so listings can still fall back to static data.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Configured reports whether the API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *Client) require(op string, keys map[string]string) error {
	var missing []string
	for _, name := range []string{"LEMON_SQUEEZY_API_KEY", "LEMON_SQUEEZY_STORE_ID", "LEMON_SQUEEZY_BUNDLE_VARIANT_ID"} {
		if v, ok := keys[name]; ok && v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &fulfillment.ConfigError{Operation: op, Missing: missing}
	}
	return nil
}

// CreateCheckout posts a custom-priced checkout for the bundle variant.
func (c *Client) CreateCheckout(ctx context.Context, req *provider.CheckoutRequest) (*provider.Checkout, error) {
	if err := c.require("checkout", map[string]string{
		"LEMON_SQUEEZY_API_KEY":           c.cfg.APIKey,
		"LEMON_SQUEEZY_STORE_ID":          c.cfg.StoreID,
		"LEMON_SQUEEZY_BUNDLE_VARIANT_ID": c.cfg.VariantID,
	}); err != nil {
		return nil, err
	}

	body := checkoutDocument{Data: checkoutData{
		Type: "checkouts",
		Attributes: checkoutAttributes{
			CustomPrice: req.CustomPrice.Amount,
			ProductOptions: productOptions{
				Name:        req.Name,
				Description: req.Description,
				RedirectURL: req.RedirectURL,
			},
			CheckoutData: checkoutCustom{Custom: req.Custom},
		},
		Relationships: checkoutRelationships{
			Store:   relationship{Data: resourceRef{Type: "stores", ID: c.cfg.StoreID}},
			Variant: relationship{Data: resourceRef{Type: "variants", ID: c.cfg.VariantID}},
		},
	}}

	var out struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, "create checkout", http.MethodPost, c.cfg.BaseURL+"/checkouts", body, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	if out.Data.Attributes.URL == "" {
		return nil, fmt.Errorf("%w: create checkout: response has no url", fulfillment.ErrProvider)
	}

	return &provider.Checkout{ID: out.Data.ID, URL: out.Data.Attributes.URL}, nil
}

// ListProducts lists products of the configured store.
func (c *Client) ListProducts(ctx context.Context) ([]provider.Product, error) {
	if err := c.require("list products", map[string]string{
		"LEMON_SQUEEZY_API_KEY":  c.cfg.APIKey,
		"LEMON_SQUEEZY_STORE_ID": c.cfg.StoreID,
	}); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("filter[store_id]", c.cfg.StoreID)

	var products []provider.Product
	err := c.list(ctx, "list products", "/products", q, func(r resource) error {
		var attr productAttributes
		if err := json.Unmarshal(r.Attributes, &attr); err != nil {
			return err
		}
		products = append(products, provider.Product{
			ID:             r.ID,
			Name:           attr.Name,
			Description:    attr.Description,
			PriceFormatted: attr.PriceFormatted,
			ThumbURL:       attr.ThumbURL,
			LargeThumbURL:  attr.LargeThumbURL,
			BuyNowURL:      attr.BuyNowURL,
			Status:         attr.Status,
		})
		return nil
	})
	return products, err
}

// ListVariants lists variants filtered by product id.
func (c *Client) ListVariants(ctx context.Context, productID string) ([]provider.Variant, error) {
	if err := c.require("list variants", map[string]string{"LEMON_SQUEEZY_API_KEY": c.cfg.APIKey}); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("filter[product_id]", productID)

	var variants []provider.Variant
	err := c.list(ctx, "list variants", "/variants", q, func(r resource) error {
		var attr variantAttributes
		if err := json.Unmarshal(r.Attributes, &attr); err != nil {
			return err
		}
		interval, count := "", 0
		if attr.IsSubscription {
			interval, count = attr.Interval, attr.IntervalCount
			if interval == "" {
				interval = "month"
			}
			if count == 0 {
				count = 1
			}
		}
		variants = append(variants, provider.Variant{
			ID:             r.ID,
			ProductID:      string(attr.ProductID),
			Name:           attr.Name,
			Status:         attr.Status,
			IsSubscription: attr.IsSubscription,
			Interval:       interval,
			IntervalCount:  count,
		})
		return nil
	})
	return variants, err
}

// ListFiles lists files filtered by product or variant id.
func (c *Client) ListFiles(ctx context.Context, filter provider.FileFilter) ([]asset.FileDescriptor, error) {
	if err := c.require("list files", map[string]string{"LEMON_SQUEEZY_API_KEY": c.cfg.APIKey}); err != nil {
		return nil, err
	}

	q := url.Values{}
	if filter.ProductID != "" {
		q.Set("filter[product_id]", filter.ProductID)
	}
	if filter.VariantID != "" {
		q.Set("filter[variant_id]", filter.VariantID)
	}

	var files []asset.FileDescriptor
	err := c.list(ctx, "list files", "/files", q, func(r resource) error {
		var attr fileAttributes
		if err := json.Unmarshal(r.Attributes, &attr); err != nil {
			return err
		}
		files = append(files, asset.FileDescriptor{
			ID:          r.ID,
			Name:        attr.Name,
			Extension:   attr.Extension,
			Size:        attr.Size,
			Status:      asset.Status(attr.Status),
			TestMode:    attr.TestMode,
			DownloadURL: attr.DownloadURL,
			VariantID:   string(attr.VariantID),
			ProductID:   filter.ProductID,
		})
		return nil
	})
	return files, err
}

// ListOrderItems lists items of orders placed with email.
func (c *Client) ListOrderItems(ctx context.Context, email string) ([]provider.OrderItem, error) {
	if err := c.require("sync purchases", map[string]string{"LEMON_SQUEEZY_API_KEY": c.cfg.APIKey}); err != nil {
		return nil, err
	}

	q := url.Values{}
	if c.cfg.StoreID != "" {
		q.Set("filter[store_id]", c.cfg.StoreID)
	}
	q.Set("filter[user_email]", email)
	q.Set("include", "order-items")

	var items []provider.OrderItem
	err := c.listDocuments(ctx, "list orders", "/orders", q, func(doc *document) error {
		for _, inc := range doc.Included {
			if inc.Type != "order-items" {
				continue
			}
			var attr orderItemAttributes
			if err := json.Unmarshal(inc.Attributes, &attr); err != nil {
				return err
			}
			items = append(items, provider.OrderItem{
				OrderID:     string(attr.OrderID),
				ProductID:   string(attr.ProductID),
				VariantID:   string(attr.VariantID),
				ProductName: attr.ProductName,
			})
		}
		return nil
	})
	return items, err
}

func (c *Client) list(ctx context.Context, op, path string, q url.Values, each func(resource) error) error {
	return c.listDocuments(ctx, op, path, q, func(doc *document) error {
		for _, r := range doc.Data {
			if err := each(r); err != nil {
				return fmt.Errorf("%w: %s: decode %s: %v", fulfillment.ErrProvider, op, r.ID, err)
			}
		}
		return nil
	})
}

// listDocuments follows links.next until exhausted.
func (c *Client) listDocuments(ctx context.Context, op, path string, q url.Values, each func(*document) error) error {
	q.Set("page[size]", fmt.Sprint(pageSize))
	next := c.cfg.BaseURL + path + "?" + q.Encode()

	for page := 0; next != "" && page < maxPages; page++ {
		var doc document
		if err := c.do(ctx, op, http.MethodGet, next, nil, http.StatusOK, &doc); err != nil {
			return err
		}
		if err := each(&doc); err != nil {
			return err
		}
		next = doc.Links.Next
	}

	return nil
}

func (c *Client) do(ctx context.Context, op, method, target string, in any, want int, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %v", fulfillment.ErrProvider, op, err)
		}
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", mediaType)
	if in != nil {
		req.Header.Set("Content-Type", mediaType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", fulfillment.ErrProvider, op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("provider request",
		"op", op,
		"method", method,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != want {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorLen)) //nolint:errcheck // best-effort error body
		return &fulfillment.ProviderError{Operation: op, Status: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", fulfillment.ErrProvider, op, err)
	}
	return nil
}

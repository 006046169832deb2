// Package sendgrid sends order confirmations through the SendGrid v3 mail
// send API.
package sendgrid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/notify"
)

// DefaultHost is the production API host.
const DefaultHost = "https://api.sendgrid.com"

const sendEndpoint = "/v3/mail/send"

// Compile-time interface check.
var _ notify.Notifier = (*Client)(nil)

// Config holds SendGrid credentials and sender identity.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host overrides DefaultHost.
	Host     string
	Timeout  time.Duration
	Branding notify.Branding
}

// Client is a notify.Notifier backed by SendGrid.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.Branding.StoreName
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify renders the confirmation and sends it to msg.To.
func (c *Client) Notify(ctx context.Context, msg *notify.Message) error {
	if msg.To == "" {
		return fulfillment.ValidationError{Field: "to", Message: "recipient email is required"}
	}

	html, err := notify.Render(ctx, msg, c.cfg.Branding)
	if err != nil {
		return fmt.Errorf("%w: render: %w", fulfillment.ErrNotify, err)
	}

	m := mail.NewSingleEmail(
		mail.NewEmail(c.cfg.FromName, c.cfg.FromEmail),
		notify.Subject(msg.OrderID, c.cfg.Branding),
		mail.NewEmail(msg.CustomerName, msg.To),
		"",
		html,
	)

	req := sg.GetRequest(c.cfg.APIKey, sendEndpoint, c.cfg.Host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := sg.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: send: %w", fulfillment.ErrNotify, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := resp.Body
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return fmt.Errorf("%w: sendgrid status %d: %s", fulfillment.ErrNotify, resp.StatusCode, strings.TrimSpace(detail))
	}

	c.logger.Info("sendgrid: confirmation sent", "order_id", msg.OrderID, "to", msg.To)
	return nil
}

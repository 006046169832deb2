// Package amqp publishes fulfillment lifecycle events to a RabbitMQ topic
// exchange, so downstream services (CRM sync, analytics, support tooling)
// can react to checkouts and reconciled orders without polling.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is used when Config.Exchange is empty.
const DefaultExchange = "fulfillment_events"

// Routing keys of published events.
const (
	RoutingCheckoutCreated = "checkout.created"
	RoutingPendingEvicted  = "pending.evicted"
	RoutingOrderReconciled = "order.reconciled"
	RoutingOrderDuplicate  = "order.duplicate"
	RoutingNotifyFailed    = "order.notify_failed"
)

// Config holds the broker connection settings.
type Config struct {
	URL      string `json:"url" mapstructure:"url" yaml:"url"`
	Exchange string `json:"exchange" mapstructure:"exchange" yaml:"exchange"`

	// DialAttempts bounds connection retries at start-up.
	DialAttempts int `json:"dial_attempts" mapstructure:"dial_attempts" yaml:"dial_attempts"`
}

// Publisher sends one JSON message under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
	Close() error
}

// Client is a Publisher over a single AMQP connection and channel.
type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

// Dial connects to the broker with retry and declares the topic exchange.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 5
	}

	var (
		conn *amqp091.Connection
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp091.Dial(cfg.URL)
		if err == nil {
			break
		}
		wait := time.Duration(i*i)*time.Second + time.Second
		logger.Warn("events/amqp: dial failed, retrying", "attempt", i+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("events/amqp: connect after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("events/amqp: open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close() //nolint:errcheck // best-effort cleanup
		conn.Close()    //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("events/amqp: declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info("events/amqp: connected", "exchange", cfg.Exchange)
	return &Client{conn: conn, channel: channel, exchange: cfg.Exchange, logger: logger}, nil
}

// Publish marshals message to JSON and publishes it as a persistent message.
func (c *Client) Publish(ctx context.Context, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("events/amqp: marshal %s: %w", routingKey, err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		c.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("events/amqp: publish %s to %s: %w", routingKey, c.exchange, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

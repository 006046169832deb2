package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	audithook "github.com/xraph/fulfillment/audit_hook"
	"github.com/xraph/fulfillment/api"
	"github.com/xraph/fulfillment/engine"
	"github.com/xraph/fulfillment/events/amqp"
	"github.com/xraph/fulfillment/observability"
	"github.com/xraph/fulfillment/store/backend"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the eviction worker",
		Long: `Start the storefront HTTP API.

Examples:
  storefront serve
  storefront serve --addr :9000 --config storefront.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := backend.Open(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
			}

			opts := []engine.Option{
				engine.WithConfig(cfg),
				engine.WithLogger(logger),
				engine.WithPlugin(audithook.New(audithook.LogRecorder(logger), audithook.WithLogger(logger))),
			}

			var apiOpts []api.Option
			if !cfg.Metrics.Disabled {
				prom := observability.NewPrometheusFactory()
				opts = append(opts, engine.WithPlugin(observability.NewMetricsExtension(prom)))
				apiOpts = append(apiOpts, api.WithMetricsHandler(prom.Handler()))
			}

			if cfg.Events.AMQPURL != "" {
				pub, err := amqp.Dial(ctx, amqp.Config{URL: cfg.Events.AMQPURL, Exchange: cfg.Events.Exchange}, logger)
				if err != nil {
					s.Close() //nolint:errcheck // startup failure
					return fmt.Errorf("connect event broker: %w", err)
				}
				opts = append(opts, engine.WithPlugin(amqp.NewPlugin(pub)))
			}

			eng := engine.New(s, opts...)
			if err := eng.Start(ctx); err != nil {
				s.Close() //nolint:errcheck // startup failure
				return err
			}
			defer func() {
				if err := eng.Stop(); err != nil {
					logger.Error("engine stop", "error", err)
				}
			}()

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.New(eng, apiOpts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("storefront listening", "addr", cfg.Addr, "store", cfg.Store.Driver)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("storefront shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

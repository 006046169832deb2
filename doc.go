// Package fulfillment is the backend of a small digital-goods storefront.
//
// It sells downloadable files through Lemon Squeezy and covers the whole
// path from cart to download:
//
//   - Checkout creates one custom-priced provider checkout per cart and
//     records the cart in a pending-order ledger
//   - Webhook reconciliation matches the paid order back to its cart,
//     processes each provider order at most once and emails the buyer
//   - Download delivery resolves the product's files through an ordered
//     strategy list and streams one file or zips several
//
// The root package holds the error taxonomy shared by every component.
// The engine package wires the components around one store.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/fulfillment/config"
//	    "github.com/xraph/fulfillment/engine"
//	    "github.com/xraph/fulfillment/store/file"
//	)
//
//	s, err := file.Open("./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := config.Load("storefront.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := engine.New(s, engine.WithConfig(cfg))
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Storage
//
// Every backend implements store.Store: file (default, atomic JSON
// snapshots), memory, and the grove-backed sqlite, postgres and mongo
// stores. store/backend picks one from config.
//
// # Errors
//
// Failures are reported with the sentinels in this package and matched
// with errors.Is. Typed errors such as *TestModeError and
// *UpstreamFetchError carry the details the HTTP layer renders.
//
// # Plugins
//
// The plugin registry delivers lifecycle hooks (checkout created, order
// reconciled, download packaged and so on) to the audit hook, the metrics
// extension and the AMQP event publisher.
package fulfillment

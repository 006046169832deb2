package audithook

// Action constants for audit events.
const (
	// Checkout actions
	ActionCheckoutCreated = "checkout.created"
	ActionPendingEvicted  = "pending.evicted"

	// Webhook and order actions
	ActionWebhookReceived = "webhook.received"
	ActionOrderReconciled = "order.reconciled"
	ActionOrderDuplicate  = "order.duplicate"
	ActionNotifyFailed    = "order.notify_failed"

	// Download actions
	ActionDownloadDenied   = "download.denied"
	ActionBundleFileFailed = "download.file_failed"
	ActionDownloadPackaged = "download.packaged"
)

// Resource constants for audit events.
const (
	ResourceCheckout = "checkout"
	ResourceLedger   = "ledger"
	ResourceWebhook  = "webhook"
	ResourceOrder    = "order"
	ResourceDownload = "download"
)

// Category constants for audit events.
const (
	CategoryCheckout    = "checkout"
	CategoryIntegration = "integration"
	CategoryFulfillment = "fulfillment"
	CategoryAccess      = "access"
	CategoryMaintenance = "maintenance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

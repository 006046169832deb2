package fulfillment

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("fulfillment: not found")
	ErrInvalidInput = errors.New("fulfillment: invalid input")

	// Configuration and authentication
	ErrConfig = errors.New("fulfillment: missing configuration")
	ErrAuth   = errors.New("fulfillment: webhook signature mismatch")

	// Delivery errors
	ErrTestMode         = errors.New("fulfillment: files are in test mode")
	ErrUpstreamFetch    = errors.New("fulfillment: upstream fetch failed")
	ErrNoFilesDelivered = errors.New("fulfillment: no files could be delivered")

	// Provider errors
	ErrProvider       = errors.New("fulfillment: provider request failed")
	ErrProviderStatus = errors.New("fulfillment: provider returned unexpected status")

	// Notification errors
	ErrNotify = errors.New("fulfillment: notification failed")

	// Store errors
	ErrStoreClosed     = errors.New("fulfillment: store is closed")
	ErrMigrationFailed = errors.New("fulfillment: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("fulfillment: validation failed for %s: %s", e.Field, e.Message)
}

// Is reports ValidationError as ErrInvalidInput.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConfigError lists the configuration keys an operation needed but did not have.
type ConfigError struct {
	Operation string
	Missing   []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fulfillment: %s requires %s", e.Operation, strings.Join(e.Missing, ", "))
}

// Is reports ConfigError as ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// TestModeError is returned when any resolved file is still in the provider's
// test mode. The whole request is refused even if other files are live.
type TestModeError struct {
	Reference string
	FileNames []string
}

func (e *TestModeError) Error() string {
	return fmt.Sprintf("fulfillment: %d file(s) for %q are in test mode", len(e.FileNames), e.Reference)
}

// Is reports TestModeError as ErrTestMode.
func (e *TestModeError) Is(target error) bool {
	return target == ErrTestMode
}

// UpstreamFetchError carries the status code returned by a file host.
type UpstreamFetchError struct {
	Status int
	File   string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fulfillment: fetch %q: status %d: %v", e.File, e.Status, e.Err)
	}
	return fmt.Sprintf("fulfillment: fetch %q: status %d", e.File, e.Status)
}

// Is reports UpstreamFetchError as ErrUpstreamFetch.
func (e *UpstreamFetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// ProviderError wraps a non-success response from the payment provider.
type ProviderError struct {
	Operation string
	Status    int
	Body      string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fulfillment: provider %s: status %d: %s", e.Operation, e.Status, e.Body)
}

// Is reports ProviderError as both ErrProvider and ErrProviderStatus.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider || target == ErrProviderStatus
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "fulfillment: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("fulfillment: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the provider is expected to redeliver and a
// later attempt may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProvider) ||
		errors.Is(err, ErrNotify) ||
		errors.Is(err, ErrStoreClosed)
}

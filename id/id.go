// Package id defines TypeID-based identity types for fulfillment records.
//
// Records created by this service (cart references, idempotency records,
// bundle archives, webhook deliveries) carry a prefix-qualified, K-sortable
// identifier in the format "prefix_suffix". Provider-assigned identifiers
// (checkout ids, order ids, product ids) stay opaque strings and never pass
// through this package.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for fulfillment record types.
const (
	PrefixCart      Prefix = "cart" // Cart reference sent as checkout custom data
	PrefixProcessed Prefix = "proc" // Processed-order idempotency record
	PrefixBundle    Prefix = "bndl" // Multi-file bundle archive
	PrefixDelivery  Prefix = "whk"  // Inbound webhook delivery
)

// ID is the primary identifier type for fulfillment records.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "cart_01h2xcejqtf2nbrexx3vqjhp41").
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// CartRef is a type-safe identifier for cart references (prefix: "cart").
type CartRef = ID

// ProcessedID is a type-safe identifier for idempotency records (prefix: "proc").
type ProcessedID = ID

// BundleID is a type-safe identifier for bundle archives (prefix: "bndl").
type BundleID = ID

// DeliveryID is a type-safe identifier for webhook deliveries (prefix: "whk").
type DeliveryID = ID

// NewCartRef generates a new unique cart reference.
func NewCartRef() ID { return New(PrefixCart) }

// NewProcessedID generates a new unique idempotency record ID.
func NewProcessedID() ID { return New(PrefixProcessed) }

// NewBundleID generates a new unique bundle ID.
func NewBundleID() ID { return New(PrefixBundle) }

// NewDeliveryID generates a new unique webhook delivery ID.
func NewDeliveryID() ID { return New(PrefixDelivery) }

// ParseCartRef parses a string and validates the "cart" prefix.
func ParseCartRef(s string) (ID, error) { return ParseWithPrefix(s, PrefixCart) }

// ParseProcessedID parses a string and validates the "proc" prefix.
func ParseProcessedID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProcessed) }

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer so a Nil ID is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

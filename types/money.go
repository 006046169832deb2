// Package types provides the money and timestamp types shared by the
// fulfillment packages.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in the smallest currency unit.
// Arithmetic is integer-only; decimal input is converted once, at the edge,
// with half-away-from-zero rounding.
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur"
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// FromMajor converts a major-unit decimal amount (dollars) into Money,
// rounding to the nearest minor unit.
func FromMajor(major decimal.Decimal, currency string) Money {
	currency = strings.ToLower(currency)
	scale := int32(currencyDecimals(currency))
	minor := major.Shift(scale).Round(0)

	return Money{Amount: minor.IntPart(), Currency: currency}
}

// FromFloat converts a float major-unit amount such as 9.99 into Money.
// The float is read through its shortest decimal representation so 0.1+0.2
// style artifacts never reach the integer amount.
func FromFloat(major float64, currency string) Money {
	return FromMajor(decimal.NewFromFloat(major), currency)
}

// ParseMajor parses a display string like "$10.00", "10", or "1,299.50"
// into Money in the given currency.
func ParseMajor(s, currency string) (Money, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimLeft(cleaned, "$€£¥")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Zero(currency), fmt.Errorf("money: parse %q: empty amount", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return Zero(currency), fmt.Errorf("money: parse %q: %w", s, err)
	}

	return FromMajor(d, currency), nil
}

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// FormatMajor returns the major unit string without currency symbol:
// "49.00" for USD(4900).
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns a human-readable string with currency symbol: "$49.00".
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "jpy":
		return "¥"
	default:
		return strings.ToUpper(currency) + " "
	}
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp":
		return 0
	default:
		return 2
	}
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}

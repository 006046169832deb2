package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"cents only", USD(5), 5, "usd", "$0.05"},
		{"negative", USD(-150), -150, "usd", "$-1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestFromFloat(t *testing.T) {
	tests := []struct {
		name  string
		major float64
		want  int64
	}{
		{"whole", 10, 1000},
		{"two decimals", 9.99, 999},
		{"binary artifact", 0.1 + 0.2, 30},
		{"half rounds away from zero", 1.005, 101},
		{"sub cent", 4.994, 499},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromFloat(tt.major, "usd")
			if got.Amount != tt.want {
				t.Errorf("FromFloat(%v) = %d, want %d", tt.major, got.Amount, tt.want)
			}
		})
	}
}

func TestFromFloatSumsToExactCents(t *testing.T) {
	prices := []float64{10.00, 5.00}
	var total Money = Zero("usd")
	for _, p := range prices {
		total = total.Add(FromFloat(p, "usd"))
	}
	if total.Amount != 1500 {
		t.Errorf("expected 1500 cents, got %d", total.Amount)
	}
	if total.String() != "$15.00" {
		t.Errorf("expected $15.00, got %s", total.String())
	}
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"$10.00", 1000, false},
		{"10", 1000, false},
		{" $1,299.50 ", 129950, false},
		{"€7.5", 750, false},
		{"", 0, true},
		{"$", 0, true},
		{"ten dollars", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMajor(tt.input, "usd")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMajor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Amount != tt.want {
				t.Errorf("ParseMajor(%q) = %d, want %d", tt.input, got.Amount, tt.want)
			}
		})
	}
}

func TestFromMajor(t *testing.T) {
	got := FromMajor(decimal.RequireFromString("12.345"), "USD")
	if got.Amount != 1235 || got.Currency != "usd" {
		t.Errorf("got %+v, want 1235 usd", got)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestSum(t *testing.T) {
	if got := Sum(); !got.Equal(Zero("usd")) {
		t.Errorf("empty Sum = %v, want $0.00", got)
	}
	if got := Sum(USD(1000), USD(500), USD(1)); got.Amount != 1501 {
		t.Errorf("Sum = %d, want 1501", got.Amount)
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(1500))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["display"] != "$15.00" {
		t.Errorf("display = %v, want $15.00", decoded["display"])
	}
	if decoded["amount"] != float64(1500) {
		t.Errorf("amount = %v, want 1500", decoded["amount"])
	}
}

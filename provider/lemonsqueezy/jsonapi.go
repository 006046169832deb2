package lemonsqueezy

import (
	"bytes"
	"encoding/json"
)

// document is a JSON:API collection response.
type document struct {
	Data     []resource `json:"data"`
	Included []resource `json:"included"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

type resource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

// flexID accepts both numeric and string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type productAttributes struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Status         string `json:"status"`
	PriceFormatted string `json:"price_formatted"`
	ThumbURL       string `json:"thumb_url"`
	LargeThumbURL  string `json:"large_thumb_url"`
	BuyNowURL      string `json:"buy_now_url"`
}

type variantAttributes struct {
	ProductID      flexID `json:"product_id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	IsSubscription bool   `json:"is_subscription"`
	Interval       string `json:"interval"`
	IntervalCount  int    `json:"interval_count"`
}

type fileAttributes struct {
	VariantID   flexID `json:"variant_id"`
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	TestMode    bool   `json:"test_mode"`
	DownloadURL string `json:"download_url"`
}

type orderItemAttributes struct {
	OrderID     flexID `json:"order_id"`
	ProductID   flexID `json:"product_id"`
	VariantID   flexID `json:"variant_id"`
	ProductName string `json:"product_name"`
}

type checkoutDocument struct {
	Data checkoutData `json:"data"`
}

type checkoutData struct {
	Type          string                `json:"type"`
	Attributes    checkoutAttributes    `json:"attributes"`
	Relationships checkoutRelationships `json:"relationships"`
}

type checkoutAttributes struct {
	CustomPrice    int64          `json:"custom_price"`
	ProductOptions productOptions `json:"product_options"`
	CheckoutData   checkoutCustom `json:"checkout_data"`
}

type productOptions struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type checkoutCustom struct {
	Custom map[string]any `json:"custom,omitempty"`
}

type checkoutRelationships struct {
	Store   relationship `json:"store"`
	Variant relationship `json:"variant"`
}

type relationship struct {
	Data resourceRef `json:"data"`
}

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

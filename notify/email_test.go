package notify_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xraph/fulfillment/notify"
	"github.com/xraph/fulfillment/order"
)

var brand = notify.Branding{StoreName: "Little Oat Learners", SupportEmail: "support@example.com"}

func TestRenderConfirmation(t *testing.T) {
	msg := &notify.Message{
		CustomerName: "Ada <script>",
		OrderID:      "1234",
		Items: []order.LineItem{
			{ID: "a", Title: "Math Pack", Price: "$10.00"},
			{ID: "b", Title: "Reading & Phonics", Price: "$5.00"},
		},
		Total:       "$15.00",
		DownloadURL: "https://files.example.com/d?id=1&sig=x",
		Date:        time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
	}

	html, err := notify.Render(context.Background(), msg, brand)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"Hi Ada &lt;script&gt;,",
		"#1234",
		"March 07, 2026",
		"Math Pack",
		"Reading &amp; Phonics",
		"$15.00",
		"Download Your Products",
		"mailto:support@example.com",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered body missing %q", want)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("customer name must be escaped")
	}
}

func TestRenderWithoutDownloadURL(t *testing.T) {
	html, err := notify.Render(context.Background(), &notify.Message{OrderID: "1", Total: "$1.00"}, brand)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "Download Your Products") {
		t.Error("download button rendered without a URL")
	}
	if !strings.Contains(html, "Hi there,") {
		t.Error("missing default greeting")
	}
}

func TestSubject(t *testing.T) {
	if got := notify.Subject("99", brand); got != "Order Confirmation #99 - Little Oat Learners" {
		t.Errorf("Subject = %q", got)
	}
}

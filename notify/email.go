package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/xraph/fulfillment/order"
)

// DateLayout formats the order date in confirmations.
const DateLayout = "January 02, 2006"

// Branding is the store identity printed in confirmations.
type Branding struct {
	StoreName    string
	WebsiteURL   string
	SupportEmail string
}

// Subject returns the confirmation subject line.
func Subject(orderID string, b Branding) string {
	return fmt.Sprintf("Order Confirmation #%s - %s", orderID, b.StoreName)
}

// Confirmation renders the HTML body of an order confirmation.
func Confirmation(msg *Message, b Branding) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		date := msg.Date
		if date.IsZero() {
			date = time.Now()
		}
		name := msg.CustomerName
		if name == "" {
			name = "there"
		}

		ew := &errWriter{w: w}
		ew.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8">`)
		ew.printf(`<title>Order Confirmation - %s</title></head>`, templ.EscapeString(b.StoreName))
		ew.printf(`<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,sans-serif;background-color:#F5F0E8;">`)
		ew.printf(`<table role="presentation" style="max-width:600px;margin:0 auto;background:#FFFFFF;border-radius:24px;">`)
		ew.printf(`<tr><td style="padding:40px;text-align:center;"><h1 style="margin:0;color:#2C2416;">Thank You!</h1>`)
		ew.printf(`<p style="color:#6B5F4F;">Your order has been confirmed</p></td></tr>`)
		ew.printf(`<tr><td style="padding:0 40px 30px;"><p>Hi %s,</p>`, templ.EscapeString(name))
		ew.printf(`<p>Thank you for your purchase! Your order has been confirmed.</p></td></tr>`)
		ew.printf(`<tr><td style="padding:0 40px 30px;"><table role="presentation" style="width:100%%;">`)
		ew.printf(`<tr><td>Order Number:</td><td style="text-align:right;font-weight:600;">#%s</td></tr>`, templ.EscapeString(msg.OrderID))
		ew.printf(`<tr><td>Order Date:</td><td style="text-align:right;font-weight:600;">%s</td></tr>`, date.Format(DateLayout))
		ew.printf(`</table></td></tr>`)
		ew.printf(`<tr><td style="padding:0 40px 30px;"><h2>Items Purchased</h2><table role="presentation" style="width:100%%;">`)
		writeItems(ew, msg.Items)
		ew.printf(`</table><table role="presentation" style="width:100%%;margin-top:20px;border-top:2px solid #E8DFD0;">`)
		ew.printf(`<tr><td style="font-weight:700;">Total</td><td style="text-align:right;font-weight:700;">%s</td></tr>`, templ.EscapeString(msg.Total))
		ew.printf(`</table></td></tr>`)
		if msg.DownloadURL != "" {
			ew.printf(`<tr><td style="padding:0 40px 30px;text-align:center;">`)
			ew.printf(`<a href="%s" style="display:inline-block;padding:16px 40px;background:#059669;color:#FFFFFF;text-decoration:none;border-radius:32px;">Download Your Products</a>`,
				templ.EscapeString(msg.DownloadURL))
			ew.printf(`<p style="font-size:13px;color:#6B5F4F;">Click the button above to access your downloads</p></td></tr>`)
		}
		if b.WebsiteURL != "" {
			ew.printf(`<tr><td style="padding:0 40px 40px;text-align:center;"><a href="%s">Visit Our Website</a></td></tr>`, templ.EscapeString(b.WebsiteURL))
		}
		if b.SupportEmail != "" {
			ew.printf(`<tr><td style="padding:30px 40px;text-align:center;font-size:14px;color:#6B5F4F;">Questions? Email us at <a href="mailto:%[1]s">%[1]s</a></td></tr>`,
				templ.EscapeString(b.SupportEmail))
		}
		ew.printf(`</table></body></html>`)
		return ew.err
	})
}

func writeItems(ew *errWriter, items []order.LineItem) {
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = "Product"
		}
		price := it.Price
		if price == "" {
			price = "$0.00"
		}
		ew.printf(`<tr><td style="padding:12px 0;border-bottom:1px solid #E8DFD0;font-weight:600;">%s</td>`, templ.EscapeString(title))
		ew.printf(`<td style="padding:12px 0;border-bottom:1px solid #E8DFD0;text-align:right;">%s</td></tr>`, templ.EscapeString(price))
	}
}

// Render renders the confirmation body to a string.
func Render(ctx context.Context, msg *Message, b Branding) (string, error) {
	var sb strings.Builder
	if err := Confirmation(msg, b).Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

package sendgrid_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/notify"
	"github.com/xraph/fulfillment/notify/sendgrid"
	"github.com/xraph/fulfillment/order"
)

func TestNotifySendsMail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sg-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := sendgrid.New(sendgrid.Config{
		APIKey:    "sg-key",
		FromEmail: "orders@example.com",
		Host:      srv.URL,
		Branding:  notify.Branding{StoreName: "Oat Shop"},
	}, sendgrid.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := c.Notify(context.Background(), &notify.Message{
		To:      "buyer@example.com",
		OrderID: "77",
		Items:   []order.LineItem{{Title: "Pack", Price: "$5.00"}},
		Total:   "$5.00",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got["subject"] != "Order Confirmation #77 - Oat Shop" {
		t.Errorf("subject = %v", got["subject"])
	}
	from, _ := got["from"].(map[string]any)
	if from["email"] != "orders@example.com" || from["name"] != "Oat Shop" {
		t.Errorf("from = %v", from)
	}
	contents, _ := got["content"].([]any)
	if len(contents) != 1 {
		t.Fatalf("content = %v", got["content"])
	}
	body, _ := contents[0].(map[string]any)["value"].(string)
	if !strings.Contains(body, "Pack") {
		t.Error("html body missing item title")
	}
}

func TestNotifyRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := sendgrid.New(sendgrid.Config{APIKey: "x", Host: srv.URL},
		sendgrid.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := c.Notify(context.Background(), &notify.Message{To: "a@b.c", OrderID: "1"})
	if !errors.Is(err, fulfillment.ErrNotify) {
		t.Fatalf("err = %v, want ErrNotify", err)
	}
	if !fulfillment.IsRetryable(err) {
		t.Error("notify failures should be retryable")
	}
}

func TestNotifyRequiresRecipient(t *testing.T) {
	c := sendgrid.New(sendgrid.Config{APIKey: "x"})
	if err := c.Notify(context.Background(), &notify.Message{OrderID: "1"}); !errors.Is(err, fulfillment.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

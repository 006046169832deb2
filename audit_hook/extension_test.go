package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	audithook "github.com/xraph/fulfillment/audit_hook"
	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
)

type trail struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (t *trail) record(_ context.Context, e *audithook.AuditEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	return nil
}

func newRegistry(t *testing.T, ext *audithook.Extension) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := reg.Register(ext); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestLifecycleEventsAreRecorded(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	reg := newRegistry(t, audithook.New(audithook.RecorderFunc(tr.record)))

	pending := order.NewPendingOrder("chk_1", id.NewCartRef(), []order.LineItem{{ID: "a"}})
	rec := order.NewProcessedOrder("901", order.EventOrderCreated)
	rec.MatchedBy = order.MatchedBySynthesized

	reg.EmitCheckoutCreated(ctx, pending, "https://pay.example/1")
	reg.EmitOrderReconciled(ctx, rec, pending.Items, &order.WebhookEvent{OrderID: "901", TotalFormatted: "$1.00"})
	reg.EmitNotifyFailed(ctx, "902", errors.New("smtp down"))
	reg.EmitDownloadPackaged(ctx, "prod_1", "bundle", 3, 2*time.Second)

	tests := []struct {
		action, resourceID, outcome, severity string
	}{
		{audithook.ActionCheckoutCreated, "chk_1", audithook.OutcomeSuccess, audithook.SeverityInfo},
		{audithook.ActionOrderReconciled, "901", audithook.OutcomePartial, audithook.SeverityWarning},
		{audithook.ActionNotifyFailed, "902", audithook.OutcomeFailure, audithook.SeverityError},
		{audithook.ActionDownloadPackaged, "prod_1", audithook.OutcomeSuccess, audithook.SeverityInfo},
	}
	if len(tr.events) != len(tests) {
		t.Fatalf("recorded %d events, want %d", len(tr.events), len(tests))
	}
	for i, tt := range tests {
		e := tr.events[i]
		if e.Action != tt.action || e.ResourceID != tt.resourceID || e.Outcome != tt.outcome || e.Severity != tt.severity {
			t.Errorf("event[%d] = %+v, want %+v", i, e, tt)
		}
	}
	if tr.events[2].Reason != "smtp down" {
		t.Errorf("failure reason = %q", tr.events[2].Reason)
	}
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	ext := audithook.New(audithook.RecorderFunc(tr.record),
		audithook.WithDisabledActions(audithook.ActionOrderDuplicate),
	)
	reg := newRegistry(t, ext)

	reg.EmitOrderDuplicate(ctx, "901")
	reg.EmitDownloadDenied(ctx, "prod_1", errors.New("not found"))

	if len(tr.events) != 1 || tr.events[0].Action != audithook.ActionDownloadDenied {
		t.Errorf("events = %+v", tr.events)
	}
}

func TestRecorderFailureDoesNotPropagate(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}), audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnOrderDuplicate(context.Background(), "1"); err != nil {
		t.Errorf("OnOrderDuplicate = %v, want nil", err)
	}
}

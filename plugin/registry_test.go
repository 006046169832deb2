package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/fulfillment/plugin"
)

type dupHook struct {
	name  string
	calls int
	err   error
	block time.Duration
}

func (h *dupHook) Name() string { return h.name }

func (h *dupHook) OnOrderDuplicate(context.Context, string) error {
	h.calls++
	if h.block > 0 {
		time.Sleep(h.block)
	}
	return h.err
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	reg := quietRegistry()
	if err := reg.Register(&dupHook{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(&dupHook{name: "a"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if reg.Count() != 1 || reg.Get("a") == nil {
		t.Errorf("count = %d", reg.Count())
	}
}

func TestEmitContinuesPastFailures(t *testing.T) {
	reg := quietRegistry()
	failing := &dupHook{name: "failing", err: errors.New("boom")}
	ok := &dupHook{name: "ok"}
	for _, p := range []plugin.Plugin{failing, ok} {
		if err := reg.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	reg.EmitOrderDuplicate(context.Background(), "1")

	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, ok.calls)
	}
}

func TestEmitBoundsSlowPlugins(t *testing.T) {
	reg := quietRegistry().WithTimeout(20 * time.Millisecond)
	if err := reg.Register(&dupHook{name: "slow", block: time.Second}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	reg.EmitOrderDuplicate(context.Background(), "1")
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("emit blocked for %s", elapsed)
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func testInvalidator(t *testing.T) *Invalidator {
	t.Helper()
	srv := miniredis.RunT(t)

	inv, err := NewInvalidator(InvalidatorConfig{Addr: srv.Addr()}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { inv.Close() })
	return inv
}

func TestInvalidatorRoundTrip(t *testing.T) {
	inv := testInvalidator(t)

	received := make(chan struct{}, 4)
	inv.Subscribe(func() { received <- struct{}{} })

	// Subscription setup races with the first publish; retry until the
	// message lands.
	deadline := time.After(2 * time.Second)
	for {
		if err := inv.Publish(context.Background()); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case <-received:
			return
		case <-deadline:
			t.Fatal("no invalidation received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestInvalidatorConnectFailure(t *testing.T) {
	if _, err := NewInvalidator(InvalidatorConfig{Addr: "127.0.0.1:1"}, nil); err == nil {
		t.Error("expected connection error")
	}
}

func TestInvalidatorCloseStopsSubscription(t *testing.T) {
	inv := testInvalidator(t)

	inv.Subscribe(func() {})
	if err := inv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := inv.Publish(context.Background()); err == nil {
		t.Error("publish on a closed client should fail")
	}
}

func TestDefaultInvalidatorConfig(t *testing.T) {
	cfg := DefaultInvalidatorConfig()
	if cfg.Addr == "" || cfg.Channel == "" {
		t.Errorf("defaults incomplete: %+v", cfg)
	}
}

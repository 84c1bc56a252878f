package browser

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.ViewportWidth != 1280 || cfg.ViewportHeight != 800 {
		t.Fatalf("unexpected default viewport: %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.ActionTimeout != 4*time.Second {
		t.Fatalf("unexpected default action timeout: %v", cfg.ActionTimeout)
	}
	if cfg.NavTimeout != 10*time.Second {
		t.Fatalf("unexpected default nav timeout: %v", cfg.NavTimeout)
	}
	if cfg.LaunchTimeout != 2*time.Minute {
		t.Fatalf("unexpected default launch timeout: %v", cfg.LaunchTimeout)
	}

	custom := Config{NavTimeout: time.Second}.withDefaults()
	if custom.NavTimeout != time.Second {
		t.Fatalf("override lost: %v", custom.NavTimeout)
	}
}

func TestNewFactoryDefaultsLogger(t *testing.T) {
	t.Parallel()

	f := NewFactory(Config{}, nil)
	if f.logger == nil {
		t.Fatal("expected nop logger")
	}
	if f.cfg.ViewportWidth == 0 {
		t.Fatal("expected defaults applied")
	}
}

func TestExistsScript(t *testing.T) {
	t.Parallel()

	script := existsScript(`div.modal.fade.show[id]:not(#select-club)`)
	if !strings.Contains(script, "document.querySelector") {
		t.Fatalf("unexpected script: %s", script)
	}
	if !strings.Contains(script, `"div.modal.fade.show[id]:not(#select-club)"`) {
		t.Fatalf("selector not quoted: %s", script)
	}

	quoted := existsScript(`a[aria-label="Close"]`)
	if !strings.Contains(quoted, `\"Close\"`) {
		t.Fatalf("inner quotes not escaped: %s", quoted)
	}
}

func TestNewPacer(t *testing.T) {
	t.Parallel()

	unlimited := newPacer(0)
	for i := 0; i < 5; i++ {
		if !unlimited.Allow() {
			t.Fatal("unlimited pacer refused")
		}
	}

	paced := newPacer(time.Hour)
	if !paced.Allow() {
		t.Fatal("first navigation should pass")
	}
	if paced.Allow() {
		t.Fatal("second navigation should be paced")
	}
}

func TestForwardCancelPropagates(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	var fired atomic.Bool
	stop := forwardCancel(parent, func() { fired.Store(true) })
	defer stop()

	cancelParent()
	deadline := time.After(2 * time.Second)
	for !fired.Load() {
		select {
		case <-deadline:
			t.Fatal("cancellation not forwarded")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestForwardCancelStops(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	var fired atomic.Bool
	stop := forwardCancel(parent, func() { fired.Store(true) })
	stop()
	cancelParent()

	time.Sleep(20 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancel fired after stop")
	}
}

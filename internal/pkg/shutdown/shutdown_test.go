package shutdown

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"eduvid/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func TestShutdownRunsAllHandlers(t *testing.T) {
	m := NewManager(testLogger(), 5*time.Second)

	var ran int32
	for i := 0; i < 3; i++ {
		m.Register(fmt.Sprintf("handler-%d", i), func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}

	m.Shutdown()

	if got := atomic.LoadInt32(&ran); got != 3 {
		t.Errorf("expected 3 handlers to run, got %d", got)
	}
}

func TestShutdownContinuesOnError(t *testing.T) {
	m := NewManager(testLogger(), 5*time.Second)

	var ran int32
	m.Register("failing", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return fmt.Errorf("cleanup failed")
	})
	m.Register("ok", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	m.Shutdown()

	if got := atomic.LoadInt32(&ran); got != 2 {
		t.Errorf("expected both handlers to run, got %d", got)
	}
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager(testLogger(), 50*time.Millisecond)

	release := make(chan struct{})
	m.Register("slow", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	start := time.Now()
	m.Shutdown()
	close(release)

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown should have timed out quickly, took %s", elapsed)
	}
}

func TestDoneClosedAfterShutdown(t *testing.T) {
	m := NewManager(testLogger(), time.Second)

	select {
	case <-m.Done():
		t.Fatal("done should not be closed before shutdown")
	default:
	}

	m.Shutdown()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("done should be closed after shutdown")
	}
}

func TestContextCanceledOnShutdown(t *testing.T) {
	m := NewManager(testLogger(), time.Second)
	ctx := m.Context()

	m.Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should be canceled after shutdown")
	}
}

func TestRegisterSimple(t *testing.T) {
	m := NewManager(testLogger(), time.Second)

	called := false
	m.RegisterSimple("simple", func() { called = true })
	m.Shutdown()

	if !called {
		t.Error("simple handler should have been called")
	}
}

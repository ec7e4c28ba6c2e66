package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestHandler_HooksRunInReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, nil)

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"storage", "watcher", "http"} {
		name := name
		h.OnShutdown(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	want := []string{"http", "watcher", "storage"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() should be closed after Shutdown")
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := NewHandler(time.Second, nil)
	calls := 0
	h.OnShutdown("count", func(ctx context.Context) error {
		calls++
		return nil
	})

	h.Shutdown()
	h.Shutdown()

	if calls != 1 {
		t.Errorf("hook ran %d times, want 1", calls)
	}
}

func TestHandler_HookErrorsJoined(t *testing.T) {
	h := NewHandler(time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	h.OnShutdown("a", func(ctx context.Context) error { return errA })
	h.OnShutdown("ok", func(ctx context.Context) error { return nil })
	h.OnShutdown("b", func(ctx context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Shutdown() error = %v, want both hook errors", err)
	}
}

func TestHandler_HookSeesDeadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, nil)
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout was not applied")
	}
}

func TestHandler_WaitContextCancel(t *testing.T) {
	h := NewHandler(time.Second, nil)
	ran := make(chan struct{})
	h.OnShutdown("mark", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after cancel")
	}
	<-ran
}

func TestHandler_WaitSignal(t *testing.T) {
	h := NewHandler(time.Second, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()

	// Give Wait time to install the signal handler.
	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after SIGTERM")
	}
}

func TestWithSignals(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithSignals(parent)
	defer cancel()

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("WithSignals context did not follow parent")
	}
}

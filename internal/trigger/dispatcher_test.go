package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	name     string
	failures int32 // fail this many invocations before succeeding
	calls    atomic.Int32

	mu     sync.Mutex
	events []Event
}

func (h *countingHandler) Name() string { return h.name }

func (h *countingHandler) Handle(_ context.Context, evt Event) error {
	n := h.calls.Add(1)
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.mu.Unlock()
	if n <= h.failures {
		return errors.New("transient failure")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_DeliversToRegisteredHandlers(t *testing.T) {
	d := NewDispatcher(testLogger(), Options{})
	h := &countingHandler{name: "test"}
	d.Register(EventBookUpdated, h)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	d.Emit(NewBookUpdatedEvent(nil, nil))

	require.Eventually(t, func() bool {
		return h.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_RetriesFailedInvocations(t *testing.T) {
	d := NewDispatcher(testLogger(), Options{
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	})
	h := &countingHandler{name: "flaky", failures: 2}
	d.Register(EventRatingWritten, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Emit(NewRatingWrittenEvent("book-1", "user-1", 5, 0, true))

	require.Eventually(t, func() bool {
		return h.calls.Load() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	d := NewDispatcher(testLogger(), Options{
		MaxAttempts:  2,
		RetryBackoff: time.Millisecond,
	})
	h := &countingHandler{name: "broken", failures: 100}
	d.Register(EventUserUpdated, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Emit(NewUserUpdatedEvent(nil, nil))

	require.Eventually(t, func() bool {
		return h.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	// No further attempts after giving up.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestDispatcher_IgnoresUnregisteredEventTypes(t *testing.T) {
	d := NewDispatcher(testLogger(), Options{})
	h := &countingHandler{name: "books-only"}
	d.Register(EventBookUpdated, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Emit(NewUserUpdatedEvent(nil, nil))
	d.Emit(NewBookUpdatedEvent(nil, nil))

	require.Eventually(t, func() bool {
		return h.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.events, 1)
	assert.Equal(t, EventBookUpdated, h.events[0].Type)
}

// ctxCheckHandler reports the context state its invocation ran under.
type ctxCheckHandler struct {
	name string
	errs chan error
}

func (h *ctxCheckHandler) Name() string { return h.name }

func (h *ctxCheckHandler) Handle(ctx context.Context, _ Event) error {
	h.errs <- ctx.Err()
	return nil
}

func TestDispatcher_DrainsQueuedEventsWithUsableContext(t *testing.T) {
	d := NewDispatcher(testLogger(), Options{})
	h := &ctxCheckHandler{name: "drain-check", errs: make(chan error, 1)}
	d.Register(EventBookUpdated, h)

	// Queue an event before the dispatcher runs, then start it with a
	// context that is already canceled. The drain pass must still hand the
	// handler a usable context instead of failing it immediately.
	d.Emit(NewBookUpdatedEvent(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	select {
	case err := <-h.errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("queued event was not dispatched during drain")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_EmitAfterShutdownIsNoop(t *testing.T) {
	d := NewDispatcher(testLogger(), Options{})
	h := &countingHandler{name: "late"}
	d.Register(EventBookDeleted, h)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)
	cancel()
	require.NoError(t, d.Shutdown(context.Background()))

	d.Emit(NewBookDeletedEvent(nil))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), h.calls.Load())
}

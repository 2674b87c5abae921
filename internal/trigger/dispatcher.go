package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bookhaven/bookhaven-server/internal/id"
)

// Handler processes one event type. Handle is called once per invocation and
// may be called again for the same event if a previous invocation failed
// (at-least-once delivery), so implementations must be idempotent.
type Handler interface {
	// Name identifies the handler in logs.
	Name() string
	// Handle processes the event. A returned error marks the invocation
	// failed and schedules a retry.
	Handle(ctx context.Context, evt Event) error
}

// Options configures dispatcher behavior.
type Options struct {
	// QueueSize is the event buffer size (default 1000).
	QueueSize int
	// MaxAttempts bounds retries per invocation, including the first attempt (default 5).
	MaxAttempts int
	// RetryBackoff is the base backoff between attempts, doubled each retry (default 100ms).
	RetryBackoff time.Duration
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 1000
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
}

// Dispatcher fans events out to registered handlers. Each (event, handler)
// pair runs as its own invocation in its own goroutine; invocations for
// different books or users proceed fully in parallel with no cross-invocation
// locking.
type Dispatcher struct {
	logger *slog.Logger
	opts   Options

	mu       sync.RWMutex
	handlers map[EventType][]Handler

	events chan Event
	wg     sync.WaitGroup

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewDispatcher creates a dispatcher. Register handlers before calling Start.
func NewDispatcher(logger *slog.Logger, opts Options) *Dispatcher {
	opts.defaults()
	return &Dispatcher{
		logger:   logger,
		opts:     opts,
		handlers: make(map[EventType][]Handler),
		events:   make(chan Event, opts.QueueSize),
	}
}

// Register attaches a handler to an event type.
func (d *Dispatcher) Register(t EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Emit queues an event for dispatch. Drops the event with a warning when the
// queue is full rather than blocking the store's write path.
func (d *Dispatcher) Emit(evt Event) {
	d.shutdownMu.RLock()
	defer d.shutdownMu.RUnlock()
	if d.shutdown {
		return
	}

	select {
	case d.events <- evt:
	default:
		d.logger.Warn("trigger queue full, dropping event", "type", evt.Type)
	}
}

// Start begins the dispatch loop. Call once at startup in a goroutine;
// returns when ctx is canceled and all in-flight invocations have finished.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("trigger dispatcher starting")

	for {
		// Check cancellation before pulling another event, so queued events
		// present at shutdown always go through the drain pass.
		select {
		case <-ctx.Done():
			d.logger.Info("trigger dispatcher stopping")
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			d.drain(drainCtx)
			d.wg.Wait()
			cancel()
			return
		default:
		}

		select {
		case evt := <-d.events:
			d.dispatch(ctx, evt)
		case <-ctx.Done():
		}
	}
}

// Shutdown stops accepting events and waits for in-flight invocations.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdownMu.Lock()
	d.shutdown = true
	d.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainTimeout bounds how long queued events may run after cancellation.
const drainTimeout = 10 * time.Second

// drain processes events already queued at cancellation time. The caller
// passes a context detached from the canceled run context so queued
// propagations still get a usable deadline instead of failing immediately.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case evt := <-d.events:
			d.dispatch(ctx, evt)
		default:
			return
		}
	}
}

// dispatch starts one invocation per handler registered for the event type.
func (d *Dispatcher) dispatch(ctx context.Context, evt Event) {
	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, h := range handlers {
		d.wg.Add(1)
		go func(h Handler) {
			defer d.wg.Done()
			d.invoke(ctx, h, evt)
		}(h)
	}
}

// invoke runs one handler invocation with bounded retry and exponential
// backoff. Handlers never resubmit manually; redelivery happens only here.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, evt Event) {
	invocationID := id.MustGenerate(id.PrefixInvocation)
	backoff := d.opts.RetryBackoff

	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		err := h.Handle(ctx, evt)
		if err == nil {
			if attempt > 1 {
				d.logger.Info("trigger invocation recovered",
					"invocation_id", invocationID,
					"handler", h.Name(),
					"type", evt.Type,
					"attempt", attempt,
				)
			}
			return
		}

		if attempt == d.opts.MaxAttempts {
			d.logger.Error("trigger invocation failed permanently",
				"invocation_id", invocationID,
				"handler", h.Name(),
				"type", evt.Type,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		d.logger.Warn("trigger invocation failed, retrying",
			"invocation_id", invocationID,
			"handler", h.Name(),
			"type", evt.Type,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return
		}
	}
}

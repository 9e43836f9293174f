package admission

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves events off the request path onto one goroutine.
// Closing the queue under the write lock means no Emit can send on a
// closed channel.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	logger     *slog.Logger

	mu      sync.RWMutex
	closed  bool
	events  chan AuditEvent
	drained chan struct{}

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     logger,
		events:     make(chan AuditEvent, max(cfg.BufferSize, 1)),
		drained:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.drained)
	for event := range d.events {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. With DropIfFull a full queue drops the event;
// otherwise Emit waits for room and drops only when ctx ends first.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.drop(ctx, event)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
		d.drop(ctx, event)
	}
}

// drop counts a lost event and logs on the first loss and every power of
// two after it.
func (d *auditDispatcher) drop(ctx context.Context, event AuditEvent) {
	n := d.dropped.Add(1)
	if n&(n-1) == 0 {
		d.logger.WarnContext(ctx, "audit event dropped",
			"event_type", event.EventType,
			"dropped_total", n)
	}
}

// Close stops accepting events and waits until the queue has been
// delivered to the sink. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.drained
}

// Dropped returns how many events never reached the queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

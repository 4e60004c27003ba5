package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples the engine's hot paths from sink latency: events are
// queued and forwarded by a single background goroutine, so a slow sink can
// never stall session validation.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	worker     sync.WaitGroup
	dropIfFull bool
	dropped    atomic.Uint64
	closing    atomic.Bool
	closeOnce  sync.Once
}

// NewDispatcher starts the forwarding goroutine. Returns nil when auditing
// is disabled; a nil Dispatcher is safe to use and does nothing.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, buffer),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}

	d.worker.Add(1)
	go d.forward()

	return d
}

func (d *Dispatcher) forward() {
	defer d.worker.Done()

	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush delivers whatever is still queued at shutdown. Events accepted
// before Close are never lost.
func (d *Dispatcher) flush() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit enqueues an event. With DropIfFull set a full queue increments the
// drop counter instead of blocking; otherwise Emit waits until the queue
// accepts the event, the context is canceled, or the dispatcher stops.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops intake, drains the queue, and waits for the worker. Safe to
// call more than once and on a nil Dispatcher.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped reports how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

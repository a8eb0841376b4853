package auditsvc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
)

type queued struct {
	ctx context.Context
	evt audit.Event
}

// Async decouples callers from a slow sink: events are queued and delivered by one goroutine.
// When the queue is full the event is dropped and counted.
type Async struct {
	next    audit.Sink
	logger  core.Logger
	queue   chan queued
	done    chan struct{}
	dropped int64

	closeOnce sync.Once
	mu        sync.RWMutex // guards closed against sends
	closed    bool
}

var _ audit.Sink = (*Async)(nil)

func NewAsync(next audit.Sink, buffer int, logger core.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan queued, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		a.next.LogEvent(q.ctx, q.evt)
	}
}

func (a *Async) LogEvent(ctx context.Context, evt audit.Event) {
	evt = evt.Stamped()
	// the request context is cancelled as soon as the handler returns
	q := queued{ctx: context.WithoutCancel(ctx), evt: evt}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(evt)
		return
	}
	select {
	case a.queue <- q:
	default:
		a.drop(evt)
	}
}

func (a *Async) drop(evt audit.Event) {
	atomic.AddInt64(&a.dropped, 1)
	if a.logger != nil {
		a.logger.Warn("audit event dropped", map[string]interface{}{"event": evt.ID, "type": string(evt.Type)})
	}
}

// Dropped is the number of events lost so far.
func (a *Async) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Close stops accepting events and waits until the queue is drained or ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

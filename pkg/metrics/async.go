package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver hands events to a slower sink on its own goroutine so that
// emitters never block. When the buffer is full the event is dropped and
// counted. A panicking sink loses that event only.
type AsyncObserver struct {
	inner Observer
	ch    chan MetricsEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	panics  atomic.Int64
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner: OrNoop(inner),
		ch:    make(chan MetricsEvent, buffer),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *AsyncObserver) Dropped() int64 { return a.dropped.Load() }

// Panics counts events whose delivery panicked in the sink.
func (a *AsyncObserver) Panics() int64 { return a.panics.Load() }

// Close stops accepting events and waits until the buffered ones are
// delivered. Later calls return immediately.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncObserver) loop() {
	defer close(a.done)
	for ev := range a.ch {
		a.deliver(ev)
	}
}

func (a *AsyncObserver) deliver(ev MetricsEvent) {
	defer func() {
		if recover() != nil {
			a.panics.Add(1)
		}
	}()
	a.inner.RecordEvent(ev)
}

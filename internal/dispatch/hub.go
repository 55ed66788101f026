// Package dispatch fans events out to registered observers. Observers are
// notified in registration order; each observer sees events in occurrence
// order on its own execution context.
package dispatch

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/driftline/chatkit/chat"
)

const queueSize = 256

type registration struct {
	obs     chat.Observer
	exec    chat.Executor
	queue   chan chat.Event
	done    chan struct{}
	removed atomic.Bool
}

// Hub is the observer registry. Publication snapshots the registration
// list, so removing an observer mid-dispatch never disturbs delivery to
// the others.
type Hub struct {
	mu     sync.RWMutex
	regs   []*registration
	logger *zap.Logger
	closed bool
}

// New creates an empty hub.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger}
}

// AddObserver registers an observer. A nil executor selects a dedicated
// serial goroutine, which preserves per-observer FIFO ordering; callers
// supplying their own executor keep FIFO only if the executor is serial.
// Registering the same observer twice is a no-op.
func (h *Hub) AddObserver(obs chat.Observer, exec chat.Executor) {
	if obs == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, reg := range h.regs {
		if reg.obs == obs && !reg.removed.Load() {
			return
		}
	}

	reg := &registration{
		obs:   obs,
		exec:  exec,
		queue: make(chan chat.Event, queueSize),
		done:  make(chan struct{}),
	}
	h.regs = append(h.regs, reg)
	go reg.pump()
}

// RemoveObserver deregisters an observer. Events already queued but not yet
// delivered to it are discarded; delivery to other observers is unaffected.
func (h *Hub) RemoveObserver(obs chat.Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.regs[:0]
	for _, reg := range h.regs {
		if reg.obs == obs {
			reg.removed.Store(true)
			close(reg.done)
			continue
		}
		kept = append(kept, reg)
	}
	h.regs = kept
}

// Publish delivers an event to every registered observer in registration
// order. Delivery is asynchronous; a full observer queue drops the event
// for that observer only.
func (h *Hub) Publish(evt chat.Event) {
	h.mu.RLock()
	snapshot := make([]*registration, len(h.regs))
	copy(snapshot, h.regs)
	h.mu.RUnlock()

	for _, reg := range snapshot {
		if reg.removed.Load() {
			continue
		}
		select {
		case reg.queue <- evt:
		default:
			h.logger.Warn("observer queue full, dropping event", zap.String("kind", evt.Kind))
		}
	}
}

// Close deregisters every observer and stops their pumps.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, reg := range h.regs {
		if !reg.removed.Load() {
			reg.removed.Store(true)
			close(reg.done)
		}
	}
	h.regs = nil
}

func (r *registration) pump() {
	for {
		select {
		case evt := <-r.queue:
			if r.removed.Load() {
				return
			}
			r.deliver(evt)
		case <-r.done:
			return
		}
	}
}

func (r *registration) deliver(evt chat.Event) {
	fn := func() {
		// Re-check so an observer removed after queueing sees nothing.
		if r.removed.Load() {
			return
		}
		r.obs.HandleEvent(evt)
	}
	if r.exec != nil {
		r.exec.Do(fn)
		return
	}
	fn()
}

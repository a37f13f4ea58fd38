package bus

import "sync"

// ExecutionContext is a named context supplied by the surrounding runtime:
// a domain that serialises task execution one at a time. The dispatcher
// never runs a handler directly; it always hands the work to the holder's
// ExecutionContext.
type ExecutionContext interface {
	// Name identifies the context for logging/metrics.
	Name() string
	// Run submits task for execution. Tasks submitted from a single
	// caller goroutine run in submission order. Run may block the caller
	// until a slot is available or the context is closed; implementations
	// with a bounded queue should document their own capacity.
	Run(task func())
	// Closed reports whether the context has been shut down.
	Closed() bool
}

// WorkerContext is the bus's own minimal ExecutionContext implementation, a
// single goroutine draining a FIFO task queue - the concrete stand-in for
// an event-loop thread. Host applications may supply their own
// ExecutionContext instead (for example, one bound to a UI thread or an
// existing worker pool).
type WorkerContext struct {
	name  string
	tasks chan func()

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWorkerContext starts a WorkerContext with the given name and queue
// capacity. queueSize <= 0 defaults to 256, mirroring config.Config's
// WorkerQueueSize default.
func NewWorkerContext(name string, queueSize int) *WorkerContext {
	if queueSize <= 0 {
		queueSize = 256
	}
	wc := &WorkerContext{
		name:   name,
		tasks:  make(chan func(), queueSize),
		closed: make(chan struct{}),
	}
	go wc.loop()
	return wc
}

func (w *WorkerContext) loop() {
	for {
		select {
		case task, ok := <-w.tasks:
			if !ok {
				return
			}
			task()
		case <-w.closed:
			return
		}
	}
}

// Name implements ExecutionContext.
func (w *WorkerContext) Name() string { return w.name }

// Run implements ExecutionContext. If the context is closed, task is
// dropped silently - matching the dispatcher's own removed-holder
// discipline of preferring a dropped message over invoking dead state.
func (w *WorkerContext) Run(task func()) {
	select {
	case <-w.closed:
		return
	default:
	}
	select {
	case w.tasks <- task:
	case <-w.closed:
	}
}

// Closed implements ExecutionContext.
func (w *WorkerContext) Closed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

// Close stops the worker loop. Idempotent.
func (w *WorkerContext) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
	})
}

// ContextGroup hands out WorkerContexts round-robin, standing in for a
// pool of named contexts an event-loop-based runtime would provide.
type ContextGroup struct {
	mu       sync.Mutex
	contexts []*WorkerContext
	next     int
}

// NewContextGroup starts size WorkerContexts, each with the given queue
// capacity.
func NewContextGroup(size, queueSize int) *ContextGroup {
	if size <= 0 {
		size = 1
	}
	g := &ContextGroup{contexts: make([]*WorkerContext, size)}
	for i := range g.contexts {
		g.contexts[i] = NewWorkerContext("worker", queueSize)
	}
	return g
}

// Next returns the next context in round-robin order.
func (g *ContextGroup) Next() ExecutionContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	ctx := g.contexts[g.next]
	g.next = (g.next + 1) % len(g.contexts)
	return ctx
}

// Close shuts down every context in the group.
func (g *ContextGroup) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ctx := range g.contexts {
		ctx.Close()
	}
}

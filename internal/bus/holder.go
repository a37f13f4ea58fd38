package bus

import "sync/atomic"

// ConsumerHandler is the user-supplied function invoked for each delivered
// message.
type ConsumerHandler func(msg *Message)

// handlerHolder binds a single registration to its owning execution
// context and lifecycle flags. It lives in exactly one cyclicSequence
// until removed.
type handlerHolder struct {
	id       string
	address  string
	ctx      ExecutionContext
	handler  ConsumerHandler
	isReply  bool
	local    bool
	removed  atomic.Bool
	detach   func() // registry-provided cleanup, called exactly once
}

// markRemoved sets the removed flag as a single-winner operation: only the
// first caller gets true back, so a handler that unregisters itself and a
// timeout that force-unregisters it can race safely.
func (h *handlerHolder) markRemoved() (won bool) {
	return h.removed.CompareAndSwap(false, true)
}

// isRemoved reports whether the holder has already been unregistered.
func (h *handlerHolder) isRemoved() bool {
	return h.removed.Load()
}

package bus

import (
	"reflect"
	"sync/atomic"
)

// Interceptor observes or transforms a Message as it crosses the bus.
// Outbound interceptors run once per send/publish/request emission, before
// dispatch; inbound interceptors run once per delivery, on the recipient's
// ExecutionContext, before the consumer handler is invoked. Returning a nil
// Message drops the delivery without invoking the handler; returning a
// non-nil error aborts it.
type Interceptor func(holder *handlerHolder, msg *Message) (*Message, error)

// interceptorChain is a copy-on-write list of Interceptors: each run loads
// one snapshot, so readers never block writers and vice versa.
type interceptorChain struct {
	chain atomic.Pointer[[]Interceptor]
}

func newInterceptorChain() *interceptorChain {
	c := &interceptorChain{}
	empty := []Interceptor{}
	c.chain.Store(&empty)
	return c
}

// add appends interceptor to the chain, executed after every interceptor
// already registered.
func (c *interceptorChain) add(interceptor Interceptor) {
	for {
		old := c.chain.Load()
		next := make([]Interceptor, len(*old)+1)
		copy(next, *old)
		next[len(*old)] = interceptor
		if c.chain.CompareAndSwap(old, &next) {
			return
		}
	}
}

// remove drops interceptor from the chain by function-pointer identity.
// Interceptor values compare only as func values so callers must keep the
// original reference to remove it later.
func (c *interceptorChain) remove(interceptor Interceptor) {
	for {
		old := c.chain.Load()
		idx := -1
		for i := range *old {
			if funcsEqual(&(*old)[i], &interceptor) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		next := make([]Interceptor, 0, len(*old)-1)
		next = append(next, (*old)[:idx]...)
		next = append(next, (*old)[idx+1:]...)
		if c.chain.CompareAndSwap(old, &next) {
			return
		}
	}
}

// run applies every interceptor in registration order, short-circuiting on
// the first error or nil-message result.
func (c *interceptorChain) run(holder *handlerHolder, msg *Message) (*Message, error) {
	chain := *c.chain.Load()
	current := msg
	for _, interceptor := range chain {
		var err error
		current, err = interceptor(holder, current)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
	}
	return current, nil
}

// funcsEqual compares two Interceptor values by their underlying code
// pointers, read through reflect.Value.Pointer. Go forbids comparing func
// values directly, so remove relies on this helper instead.
func funcsEqual(a, b *Interceptor) bool {
	return reflect.ValueOf(*a).Pointer() == reflect.ValueOf(*b).Pointer()
}

// OutboundInterceptor observes or transforms a Message once, at
// send/publish/request time, before the dispatcher looks up any holder. It
// is how NewTracingInterceptor attaches a span to an emission.
type OutboundInterceptor func(msg *Message) (*Message, error)

// outboundInterceptorChain mirrors interceptorChain's copy-on-write
// discipline for the outbound path.
type outboundInterceptorChain struct {
	chain atomic.Pointer[[]OutboundInterceptor]
}

func newOutboundInterceptorChain() *outboundInterceptorChain {
	c := &outboundInterceptorChain{}
	empty := []OutboundInterceptor{}
	c.chain.Store(&empty)
	return c
}

func (c *outboundInterceptorChain) add(interceptor OutboundInterceptor) {
	for {
		old := c.chain.Load()
		next := make([]OutboundInterceptor, len(*old)+1)
		copy(next, *old)
		next[len(*old)] = interceptor
		if c.chain.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (c *outboundInterceptorChain) remove(interceptor OutboundInterceptor) {
	for {
		old := c.chain.Load()
		idx := -1
		for i := range *old {
			if reflect.ValueOf((*old)[i]).Pointer() == reflect.ValueOf(interceptor).Pointer() {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		next := make([]OutboundInterceptor, 0, len(*old)-1)
		next = append(next, (*old)[:idx]...)
		next = append(next, (*old)[idx+1:]...)
		if c.chain.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (c *outboundInterceptorChain) run(msg *Message) (*Message, error) {
	chain := *c.chain.Load()
	current := msg
	for _, interceptor := range chain {
		var err error
		current, err = interceptor(current)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
	}
	return current, nil
}

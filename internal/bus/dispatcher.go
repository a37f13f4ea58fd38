package bus

import (
	"github.com/relaybus/eventbus/internal/bus/errors"
	"github.com/relaybus/eventbus/internal/bus/logging"
	"github.com/relaybus/eventbus/internal/bus/metrics"
)

// dispatcher looks up the address in the registry, picks a holder (send:
// exactly one, publish: all), and schedules delivery onto each holder's
// ExecutionContext. It never runs a handler on the caller's goroutine.
type dispatcher struct {
	registry    *registry
	inbound     *interceptorChain
	log         logging.Logger
	metricsSink metrics.Sink
}

func newDispatcher(reg *registry, inbound *interceptorChain, log logging.Logger, sink metrics.Sink) *dispatcher {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &dispatcher{registry: reg, inbound: inbound, log: log, metricsSink: sink}
}

// dispatch routes msg according to msg.Send and reports the outcome via
// done, which receives nil on successful scheduling of at least one
// delivery or a *errors.ReplyError(NO_HANDLERS) when nothing is registered
// for msg.Address. done is called synchronously, before any handler runs -
// it reports scheduling outcome, not delivery outcome: the caller's
// write-promise resolves once the message has been handed to a holder, not
// once the handler has returned.
func (d *dispatcher) dispatch(msg *Message, done func(error)) {
	seq, ok := d.registry.lookup(msg.Address)
	if !ok || seq.empty() {
		// A holder can unregister between lookup and delivery; that race
		// is treated as an intentional NO_HANDLERS outcome rather than a
		// bug to fix.
		d.metricsSink.MessageDelivered(msg.Address, false)
		done(errors.NoHandlers(msg.Address))
		return
	}

	if msg.Send {
		d.dispatchOne(seq, msg, done)
		return
	}
	d.dispatchAll(seq, msg, done)
}

func (d *dispatcher) dispatchOne(seq *cyclicSequence, msg *Message, done func(error)) {
	// Try every holder in the snapshot at most once: next() can return a
	// holder that unregistered a moment ago, so skip past removed ones
	// instead of failing the whole send on the first stale pick.
	attempts := seq.size()
	for i := 0; i < attempts; i++ {
		holder := seq.next()
		if holder == nil {
			break
		}
		if holder.isRemoved() || (holder.local && !holder.isReply && !msg.FromLocal) {
			continue
		}
		d.schedule(holder, msg.copyFor())
		done(nil)
		return
	}
	d.metricsSink.MessageDelivered(msg.Address, false)
	done(errors.NoHandlers(msg.Address))
}

func (d *dispatcher) dispatchAll(seq *cyclicSequence, msg *Message, done func(error)) {
	holders := seq.snapshot()
	delivered := 0
	for _, holder := range holders {
		// LocalConsumer registrations skip messages relayed in from a
		// bridge; reply handlers still accept relayed replies.
		if holder.isRemoved() || (holder.local && !holder.isReply && !msg.FromLocal) {
			continue
		}
		d.schedule(holder, msg.copyFor())
		delivered++
	}
	if delivered == 0 {
		d.metricsSink.MessageDelivered(msg.Address, false)
		done(errors.NoHandlers(msg.Address))
		return
	}
	done(nil)
}

// schedule hands msg to holder's ExecutionContext. The removed check is
// repeated inside the scheduled task because a holder can unregister
// between scheduling and the task actually running.
func (d *dispatcher) schedule(holder *handlerHolder, msg *Message) {
	d.metricsSink.MessageDelivered(msg.Address, true)
	holder.ctx.Run(func() {
		if holder.isRemoved() {
			return
		}
		defer d.recoverHandlerPanic(holder, msg)

		delivered := msg
		if d.inbound != nil {
			var err error
			delivered, err = d.inbound.run(holder, msg)
			if err != nil {
				d.log.Error("inbound interceptor rejected message", err, logging.LogFields{
					"address": msg.Address,
				})
				return
			}
			if delivered == nil {
				return
			}
		}

		holder.handler(delivered)

		// One-shot reply handlers are removed right after their single
		// invocation.
		if holder.isReply {
			holder.detach()
		}
	})
}

func (d *dispatcher) recoverHandlerPanic(holder *handlerHolder, msg *Message) {
	if r := recover(); r != nil {
		d.log.Error("consumer handler panicked", nil, logging.LogFields{
			"address": msg.Address,
			"handler": holder.id,
			"panic":   r,
		})
	}
}

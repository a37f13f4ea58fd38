package bus

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaybus/eventbus/internal/bus/errors"
	"github.com/relaybus/eventbus/internal/bus/jsoncodec"
	"github.com/relaybus/eventbus/internal/bus/metrics"
)

// replyAddressPrefix marks synthetic reply addresses so they never collide
// with a user-chosen address.
const replyAddressPrefix = "__reply."

// failureHeaderKey marks a reply Message as carrying a replyFailureBody in
// its Body instead of an ordinary payload.
const failureHeaderKey = "x-eventbus-reply-failure"
const failureHeaderValue = "true"

// replyCorrelator mints synthetic reply addresses, arms per-request
// timeouts, and resolves a Future once a reply (or a failure) arrives.
type replyCorrelator struct {
	seq        atomic.Uint64
	registry   *registry
	dispatcher *dispatcher
	metrics    metrics.Sink
}

func newReplyCorrelator(reg *registry, d *dispatcher, sink metrics.Sink) *replyCorrelator {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &replyCorrelator{registry: reg, dispatcher: d, metrics: sink}
}

// Future is returned by request() and resolves exactly once, either with a
// reply Message, with a *errors.ReplyError describing why none arrived, or
// with context.Canceled after Cancel.
type Future struct {
	done     chan struct{}
	msg      *Message
	err      error
	once     sync.Once
	cancelFn func()
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(msg *Message, err error) {
	f.once.Do(func() {
		f.msg = msg
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future resolves or ctx is done, whichever comes
// first. A context cancellation does not unregister the underlying reply
// handler; a late reply is simply dropped once the caller has stopped
// waiting. Call Cancel instead to unregister the handler outright.
func (f *Future) Wait(ctx context.Context) (*Message, error) {
	select {
	case <-f.done:
		return f.msg, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel unregisters the reply handler backing this future and resolves it
// with context.Canceled if it has not already resolved. Safe to call more
// than once, and after the future has already resolved.
func (f *Future) Cancel() {
	f.resolve(nil, context.Canceled)
	if f.cancelFn != nil {
		f.cancelFn()
	}
}

// request registers a one-shot local-only reply handler bound to replyCtx,
// arms a timeout, attaches the reply address to msg, and dispatches msg as
// a normal send.
func (rc *replyCorrelator) request(msg *Message, replyCtx ExecutionContext, sendTimeout time.Duration) *Future {
	future := newFuture()
	replyAddress := rc.nextReplyAddress()
	msg.ReplyAddress = replyAddress

	var holder *handlerHolder
	var timer *time.Timer

	handler := func(reply *Message) {
		if timer != nil {
			timer.Stop()
		}
		if reply.Headers.Get(failureHeaderKey) == failureHeaderValue {
			var body replyFailureBody
			if err := jsoncodec.Unmarshal(reply.Body, &body); err != nil {
				rc.metrics.ReplyFailure(msg.Address, errors.FailureError.String())
				future.resolve(nil, errors.NewReplyError(errors.FailureError, msg.Address, err.Error()))
				return
			}
			failureType := failureTypeFromString(body.Type)
			rc.metrics.ReplyFailure(msg.Address, failureType.String())
			future.resolve(nil, errors.NewReplyError(
				failureType,
				msg.Address,
				body.Message,
			))
			return
		}
		future.resolve(reply, nil)
	}

	holder = rc.registry.register(replyAddress, replyCtx, handler, true, true)

	timer = time.AfterFunc(sendTimeout, func() {
		rc.registry.unregister(holder)
		rc.metrics.ReplyFailure(msg.Address, errors.FailureTimeout.String())
		future.resolve(nil, errors.Timeout(msg.Address))
	})

	future.cancelFn = func() {
		timer.Stop()
		rc.registry.unregister(holder)
	}

	rc.dispatcher.dispatch(msg, func(err error) {
		if err == nil {
			return
		}
		// The outbound send itself failed to find a holder: fail the
		// future immediately and clean up the reply registration.
		timer.Stop()
		rc.registry.unregister(holder)
		if replyErr, ok := err.(*errors.ReplyError); ok {
			rc.metrics.ReplyFailure(msg.Address, replyErr.Type.String())
		} else {
			rc.metrics.ReplyFailure(msg.Address, errors.FailureError.String())
		}
		future.resolve(nil, err)
	})

	return future
}

// failReply builds a reply Message that carries a replyFailureBody instead
// of a normal payload, for a responder that cannot produce one. The body
// is JSON-encoded and a marker header set, so the failure survives
// exactly the same Body/Headers/CodecName round-trip a normal reply does,
// including through RelayInbound and a bridge.
func failReply(address string, failureType errors.FailureType, reason string) (*Message, error) {
	body, err := jsoncodec.Marshal(replyFailureBody{Type: failureType.String(), Message: reason})
	if err != nil {
		return nil, err
	}
	headers := NewHeaders(failureHeaderKey, failureHeaderValue)
	return newMessage(address, true, headers, body, "json"), nil
}

func failureTypeFromString(s string) errors.FailureType {
	switch s {
	case "NO_HANDLERS":
		return errors.FailureNoHandlers
	case "TIMEOUT":
		return errors.FailureTimeout
	case "RECIPIENT_FAILURE":
		return errors.FailureRecipientFailure
	default:
		return errors.FailureError
	}
}

func (rc *replyCorrelator) nextReplyAddress() string {
	n := rc.seq.Add(1)
	return replyAddressPrefix + strconv.FormatUint(n, 10)
}

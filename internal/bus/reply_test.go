package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relaybus/eventbus/internal/bus/errors"
	"github.com/relaybus/eventbus/internal/bus/metrics"
)

// recordingSink captures ReplyFailure calls for assertions; the rest of the
// metrics.Sink methods are no-ops.
type recordingSink struct {
	metrics.Noop
	mu       sync.Mutex
	failures []string
}

func (s *recordingSink) ReplyFailure(address string, failureType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, address+":"+failureType)
}

func (s *recordingSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failures))
	copy(out, s.failures)
	return out
}

func newTestCorrelator() (*replyCorrelator, *registry, *dispatcher) {
	d, reg := newTestDispatcher()
	return newReplyCorrelator(reg, d, metrics.Noop{}), reg, d
}

func TestRequestResolvesWithReply(t *testing.T) {
	rc, reg, _ := newTestCorrelator()
	callerCtx := NewWorkerContext("caller", 4)
	responderCtx := NewWorkerContext("responder", 4)
	defer callerCtx.Close()
	defer responderCtx.Close()

	reg.register("addr", responderCtx, func(msg *Message) {
		reply := newMessage(msg.ReplyAddress, true, nil, []byte("hi!"), "string")
		rc.dispatcher.dispatch(reply, func(error) {})
	}, false, false)

	msg := newMessage("addr", true, nil, []byte("hi"), "string")
	future := rc.request(msg, callerCtx, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(reply.Body) != "hi!" {
		t.Fatalf("expected reply body 'hi!', got %q", reply.Body)
	}
}

func TestRequestNoHandlersFailsImmediately(t *testing.T) {
	rc, _, _ := newTestCorrelator()
	callerCtx := NewWorkerContext("caller", 4)
	defer callerCtx.Close()

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)

	replyErr, ok := err.(*errors.ReplyError)
	if !ok || replyErr.Type != errors.FailureNoHandlers {
		t.Fatalf("expected NO_HANDLERS, got %v", err)
	}
}

func TestRequestTimesOut(t *testing.T) {
	rc, reg, _ := newTestCorrelator()
	callerCtx := NewWorkerContext("caller", 4)
	responderCtx := NewWorkerContext("responder", 4)
	defer callerCtx.Close()
	defer responderCtx.Close()

	// A responder is registered but never replies, so the request must
	// time out rather than hang.
	reg.register("addr", responderCtx, func(*Message) {}, false, false)

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)

	replyErr, ok := err.(*errors.ReplyError)
	if !ok || replyErr.Type != errors.FailureTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestRequestRecipientFailurePropagates(t *testing.T) {
	rc, reg, _ := newTestCorrelator()
	callerCtx := NewWorkerContext("caller", 4)
	responderCtx := NewWorkerContext("responder", 4)
	defer callerCtx.Close()
	defer responderCtx.Close()

	reg.register("addr", responderCtx, func(msg *Message) {
		reply, err := failReply(msg.ReplyAddress, errors.FailureRecipientFailure, "boom")
		if err != nil {
			t.Fatalf("failReply: %v", err)
		}
		rc.dispatcher.dispatch(reply, func(error) {})
	}, false, false)

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)

	replyErr, ok := err.(*errors.ReplyError)
	if !ok || replyErr.Type != errors.FailureRecipientFailure || replyErr.Message != "boom" {
		t.Fatalf("expected RECIPIENT_FAILURE boom, got %v", err)
	}
}

func TestReplyHandlerIsOneShot(t *testing.T) {
	rc, reg, _ := newTestCorrelator()
	callerCtx := NewWorkerContext("caller", 4)
	responderCtx := NewWorkerContext("responder", 4)
	defer callerCtx.Close()
	defer responderCtx.Close()

	var replyAddr string
	reg.register("addr", responderCtx, func(msg *Message) {
		replyAddr = msg.ReplyAddress
		reply := newMessage(msg.ReplyAddress, true, nil, []byte("ok"), "string")
		rc.dispatcher.dispatch(reply, func(error) {})
	}, false, false)

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := future.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitForCondition(t, func() bool {
		_, ok := reg.lookup(replyAddr)
		return !ok
	})
}

func TestFutureCancelUnregistersReplyHandler(t *testing.T) {
	rc, reg, _ := newTestCorrelator()
	callerCtx := NewWorkerContext("caller", 4)
	defer callerCtx.Close()

	msg := newMessage("nowhere-but-registered", true, nil, nil, "")
	// Register a throwaway handler so dispatch doesn't fail fast with
	// NO_HANDLERS before Cancel has a chance to race it.
	responderCtx := NewWorkerContext("responder", 4)
	defer responderCtx.Close()
	reg.register(msg.Address, responderCtx, func(*Message) {}, false, false)

	future := rc.request(msg, callerCtx, time.Minute)
	replyAddr := msg.ReplyAddress

	if _, ok := reg.lookup(replyAddr); !ok {
		t.Fatal("expected reply handler to be registered")
	}

	future.Cancel()

	waitForCondition(t, func() bool {
		_, ok := reg.lookup(replyAddr)
		return !ok
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRequestReportsReplyFailureToMetrics(t *testing.T) {
	d, reg := newTestDispatcher()
	sink := &recordingSink{}
	rc := newReplyCorrelator(reg, d, sink)
	callerCtx := NewWorkerContext("caller", 4)
	defer callerCtx.Close()

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := future.Wait(ctx); err == nil {
		t.Fatal("expected NO_HANDLERS error")
	}

	if got := sink.recorded(); len(got) != 1 || got[0] != "addr:NO_HANDLERS" {
		t.Fatalf("expected one NO_HANDLERS report for addr, got %v", got)
	}
}

func TestRequestTimeoutReportsReplyFailureToMetrics(t *testing.T) {
	d, reg := newTestDispatcher()
	sink := &recordingSink{}
	rc := newReplyCorrelator(reg, d, sink)
	callerCtx := NewWorkerContext("caller", 4)
	responderCtx := NewWorkerContext("responder", 4)
	defer callerCtx.Close()
	defer responderCtx.Close()

	reg.register("addr", responderCtx, func(*Message) {}, false, false)

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := future.Wait(ctx); err == nil {
		t.Fatal("expected TIMEOUT error")
	}

	if got := sink.recorded(); len(got) != 1 || got[0] != "addr:TIMEOUT" {
		t.Fatalf("expected one TIMEOUT report for addr, got %v", got)
	}
}

func TestRequestRecipientFailureReportsToMetrics(t *testing.T) {
	d, reg := newTestDispatcher()
	sink := &recordingSink{}
	rc := newReplyCorrelator(reg, d, sink)
	callerCtx := NewWorkerContext("caller", 4)
	responderCtx := NewWorkerContext("responder", 4)
	defer callerCtx.Close()
	defer responderCtx.Close()

	reg.register("addr", responderCtx, func(msg *Message) {
		reply, err := failReply(msg.ReplyAddress, errors.FailureRecipientFailure, "boom")
		if err != nil {
			t.Fatalf("failReply: %v", err)
		}
		rc.dispatcher.dispatch(reply, func(error) {})
	}, false, false)

	msg := newMessage("addr", true, nil, nil, "")
	future := rc.request(msg, callerCtx, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := future.Wait(ctx); err == nil {
		t.Fatal("expected RECIPIENT_FAILURE error")
	}

	if got := sink.recorded(); len(got) != 1 || got[0] != "addr:RECIPIENT_FAILURE" {
		t.Fatalf("expected one RECIPIENT_FAILURE report for addr, got %v", got)
	}
}

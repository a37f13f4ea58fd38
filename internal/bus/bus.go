package bus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaybus/eventbus/internal/bus/codec"
	"github.com/relaybus/eventbus/internal/bus/config"
	"github.com/relaybus/eventbus/internal/bus/errors"
	"github.com/relaybus/eventbus/internal/bus/logging"
	"github.com/relaybus/eventbus/internal/bus/metrics"
)

// Bus is the façade of the event bus: it owns the handler registry, the
// interceptor chains, the codec registry, and the reply correlator, and
// exposes the send/publish/request/consumer operations.
type Bus struct {
	conf config.Config
	log  logging.Logger

	registry   *registry
	dispatcher *dispatcher
	inbound    *interceptorChain
	outbound   *outboundInterceptorChain
	correlator *replyCorrelator
	codecs     *codec.Registry
	metrics    metrics.Sink
	contexts   *ContextGroup

	started atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex

	httpServersMu sync.Mutex
	httpServers   map[int]*http.ServeMux
}

// NewBus constructs a Bus. Consumers may be registered before Start; sends
// and publishes are rejected with ErrIllegalState until Start has run.
func NewBus(conf config.Config, log logging.Logger) *Bus {
	conf = conf.WithDefaults()

	sink := metrics.Sink(metrics.Noop{})
	if conf.MetricsEnabled {
		sink = metrics.NewPrometheus(prometheus.DefaultRegisterer)
	}

	reg := newRegistry()
	inbound := newInterceptorChain()
	d := newDispatcher(reg, inbound, log, sink)

	b := &Bus{
		conf:       conf,
		log:        log,
		registry:   reg,
		dispatcher: d,
		inbound:    inbound,
		outbound:   newOutboundInterceptorChain(),
		correlator: newReplyCorrelator(reg, d, sink),
		codecs:     codec.NewRegistry(),
		metrics:    sink,
		contexts:   NewContextGroup(conf.WorkerContexts, conf.WorkerQueueSize),
	}
	if conf.TracingEnabled {
		b.outbound.add(NewTracingInterceptor(conf.Tracer))
	}
	return b
}

// Start transitions the Bus from not-started to started exactly once. A
// second Start call fails with ErrIllegalState.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started.CompareAndSwap(false, true) {
		return errors.ErrIllegalState
	}

	if b.conf.MetricsEnabled && b.conf.MetricsPort != 0 {
		b.startMetricsServer()
	}

	b.log.Info("event bus started", logging.LogFields{
		"worker_contexts": b.conf.WorkerContexts,
	})
	return nil
}

// Close unregisters every holder across every address, then closes the
// worker context pool. If the Bus was never started, Close returns
// immediately with no error. After Close, emissions fail with
// ErrIllegalState.
func (b *Bus) Close(ctx context.Context) error {
	if !b.started.Load() {
		return nil
	}
	b.closed.Store(true)
	b.registry.unregisterAll()
	b.contexts.Close()
	b.log.Info("event bus closed", logging.LogFields{})
	return nil
}

func (b *Bus) requireStarted() error {
	if !b.started.Load() || b.closed.Load() {
		return errors.ErrIllegalState
	}
	return nil
}

// createMessage resolves the codec (name override, else default-for-type,
// else the JSON fallback) and rejects an empty address.
func (b *Bus) createMessage(send bool, address string, body any, opts *DeliveryOptions) (*Message, error) {
	if address == "" {
		return nil, errors.ErrAddressRequired
	}
	c, err := b.codecs.Resolve(opts.codecName(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCodecNotFound, err)
	}
	encoded, err := c.Encode(body)
	if err != nil {
		return nil, err
	}
	msg := newMessage(address, send, opts.headers(), encoded, c.Name())
	msg.LocalOnly = opts.localOnly()
	return msg, nil
}

func (b *Bus) emit(send bool, address string, body any, opts *DeliveryOptions) error {
	if err := b.requireStarted(); err != nil {
		return err
	}
	msg, err := b.createMessage(send, address, body, opts)
	if err != nil {
		return err
	}
	msg, err = b.outbound.run(msg)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	mode := "publish"
	if send {
		mode = "send"
	}
	b.metrics.MessageSent(address, mode)

	var dispatchErr error
	done := make(chan struct{})
	b.dispatcher.dispatch(msg, func(err error) {
		dispatchErr = err
		close(done)
	})
	<-done
	return dispatchErr
}

// Send is a fire-and-forget emission delivered to exactly one consumer.
func (b *Bus) Send(address string, body any, opts *DeliveryOptions) error {
	return b.emit(true, address, body, opts)
}

// Publish is a fire-and-forget emission fanned out to every consumer.
func (b *Bus) Publish(address string, body any, opts *DeliveryOptions) error {
	return b.emit(false, address, body, opts)
}

// Request is a one-of-N emission with a correlated reply. The caller's
// replies run on replyCtx; pass nil to use a context handed out from the
// Bus's own worker pool.
func (b *Bus) Request(address string, body any, opts *DeliveryOptions, replyCtx ExecutionContext) (*Future, error) {
	if err := b.requireStarted(); err != nil {
		return nil, err
	}
	msg, err := b.createMessage(true, address, body, opts)
	if err != nil {
		return nil, err
	}
	msg, err = b.outbound.run(msg)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.NoHandlers(address)
	}
	if replyCtx == nil {
		replyCtx = b.contexts.Next()
	}
	b.metrics.MessageSent(address, "request")
	timeout := opts.sendTimeout(b.conf.DefaultSendTimeout)
	return b.correlator.request(msg, replyCtx, timeout), nil
}

// RelayInbound publishes a message that arrived from an external bridge
// directly into local dispatch, without re-encoding through the codec
// registry: body is already wire-encoded bytes produced by the origin
// process's own codec.
// LocalOnly is forced on the resulting message so a bridge's own outbound
// interceptor does not forward it straight back out (see bridge.Attach).
func (b *Bus) RelayInbound(address string, body []byte, codecName string, headers Headers) error {
	if err := b.requireStarted(); err != nil {
		return err
	}
	msg := newMessage(address, false, headers, body, codecName)
	msg.FromLocal = false
	msg.LocalOnly = true

	msg, err := b.outbound.run(msg)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	b.metrics.MessageSent(address, "publish")
	var dispatchErr error
	done := make(chan struct{})
	b.dispatcher.dispatch(msg, func(err error) {
		dispatchErr = err
		close(done)
	})
	<-done
	return dispatchErr
}

// FailReply sends a failure reply on replyAddress instead of a normal
// payload, for a consumer that received a request it cannot (or will not)
// answer. failureType is typically errors.FailureRecipientFailure; reason
// is a human-readable description surfaced on the requester's
// *errors.ReplyError. The failure is encoded into the reply's body and a
// marker header, so it round-trips through RelayInbound and a bridge like
// any other reply.
func (b *Bus) FailReply(replyAddress string, failureType errors.FailureType, reason string) error {
	if err := b.requireStarted(); err != nil {
		return err
	}
	msg, err := failReply(replyAddress, failureType, reason)
	if err != nil {
		return err
	}
	msg, err = b.outbound.run(msg)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	b.metrics.MessageSent(replyAddress, "send")
	var dispatchErr error
	done := make(chan struct{})
	b.dispatcher.dispatch(msg, func(err error) {
		dispatchErr = err
		close(done)
	})
	<-done
	return dispatchErr
}

// Consumer registers handler on address, running it on ctx. Pass nil for
// ctx to use a context handed out from the Bus's worker pool. The returned
// function unregisters the handler; it is safe to call more than once.
func (b *Bus) Consumer(address string, ctx ExecutionContext, handler ConsumerHandler) (func(), error) {
	return b.consumer(address, ctx, handler, false)
}

// LocalConsumer is Consumer with the local-only flag forced: handlers
// registered this way never receive messages relayed in from a bridge.
func (b *Bus) LocalConsumer(address string, ctx ExecutionContext, handler ConsumerHandler) (func(), error) {
	return b.consumer(address, ctx, handler, true)
}

func (b *Bus) consumer(address string, ctx ExecutionContext, handler ConsumerHandler, local bool) (func(), error) {
	if address == "" {
		return nil, errors.ErrAddressRequired
	}
	if handler == nil {
		return nil, errors.ErrHandlerRequired
	}
	if ctx == nil {
		ctx = b.contexts.Next()
	}
	holder := b.registry.register(address, ctx, handler, local, false)
	b.metrics.HandlerRegistered(address)
	var once sync.Once
	return func() {
		once.Do(func() {
			b.registry.unregister(holder)
			b.metrics.HandlerUnregistered(address)
		})
	}, nil
}

// RegisterCodec adds c to the codec registry under its own name.
func (b *Bus) RegisterCodec(c codec.Codec) { b.codecs.Register(c) }

// UnregisterCodec removes a codec by name.
func (b *Bus) UnregisterCodec(name string) { b.codecs.Unregister(name) }

// RegisterDefaultCodec makes c the default codec for values sharing
// sample's Go type.
func (b *Bus) RegisterDefaultCodec(sample any, c codec.Codec) { b.codecs.RegisterDefaultCodec(sample, c) }

// UnregisterDefaultCodec removes the default-for-type mapping for sample's
// Go type.
func (b *Bus) UnregisterDefaultCodec(sample any) { b.codecs.UnregisterDefaultCodec(sample) }

// AddOutboundInterceptor registers interceptor to run on every
// send/publish/request emission, in registration order.
func (b *Bus) AddOutboundInterceptor(interceptor OutboundInterceptor) { b.outbound.add(interceptor) }

// RemoveOutboundInterceptor removes interceptor by identity.
func (b *Bus) RemoveOutboundInterceptor(interceptor OutboundInterceptor) { b.outbound.remove(interceptor) }

// AddInboundInterceptor registers interceptor to run on every delivery, on
// the recipient's ExecutionContext, before the consumer handler runs.
func (b *Bus) AddInboundInterceptor(interceptor Interceptor) { b.inbound.add(interceptor) }

// RemoveInboundInterceptor removes interceptor by identity.
func (b *Bus) RemoveInboundInterceptor(interceptor Interceptor) { b.inbound.remove(interceptor) }

// RegisterHTTPHandler exposes handler under pattern on an HTTP server bound
// to port. Start launches the registered servers only when MetricsEnabled
// is set and MetricsPort is non-zero; a handler registered after Start is
// served only if a server for its port is already running. Used for the
// Prometheus /metrics endpoint.
func (b *Bus) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	b.httpServersMu.Lock()
	defer b.httpServersMu.Unlock()
	if b.httpServers == nil {
		b.httpServers = make(map[int]*http.ServeMux)
	}
	mux, ok := b.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		b.httpServers[port] = mux
	}
	mux.Handle(pattern, handler)
}

func (b *Bus) startMetricsServer() {
	b.RegisterHTTPHandler(b.conf.MetricsPort, "/metrics", metrics.Handler())

	b.httpServersMu.Lock()
	defer b.httpServersMu.Unlock()
	for port, mux := range b.httpServers {
		addr := fmt.Sprintf(":%d", port)
		b.log.Info("starting metrics HTTP server", logging.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
			if err := server.ListenAndServe(); err != nil {
				b.log.Error("metrics HTTP server stopped", err, logging.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}

// Package eventbus is an in-process, address-based event bus modeled on
// the classic Vert.x EventBus: send delivers to exactly one of the
// consumers registered on an address, publish fans out to all of them,
// and request/reply correlates a response through a synthetic one-shot
// address with a timeout.
//
// A Bus is brought up with NewBus and Start, after which handlers attach
// via Consumer or LocalConsumer and emit through Send, Publish, or
// Request. Bodies are encoded through a per-Bus codec registry (string,
// bytes, JSON, and protobuf codecs are registered by default) so
// consumers can register their own codecs for custom types without the
// bus caring about wire formats.
//
// # Interceptors
//
// AddOutboundInterceptor runs before an emission is dispatched and can
// veto, tag, or trace it. AddInboundInterceptor runs on the receiving
// consumer's own execution context immediately before its handler is
// invoked. NewTracingInterceptor provides an OpenTelemetry-backed
// outbound interceptor.
//
// # Execution contexts
//
// Every Consumer registration runs on an ExecutionContext, a serial task
// queue comparable to a Vert.x Context: WorkerContext offers a single
// FIFO worker, and ContextGroup hands consumers a shared pool round
// robin so unrelated handlers don't serialize behind one another.
//
// # Bridging to external brokers
//
// The bridge subpackage attaches an address to an external broker
// (Kafka, AMQP, NATS, or AWS SNS/SQS) so messages sent or published
// locally are also forwarded out, and messages arriving from the broker
// are relayed back into local dispatch, reaching every consumer except
// those registered through LocalConsumer. This is
// an optional extension: a Bus with no bridge attached never leaves the
// process.
package eventbus

package eventbus

import (
	buspkg "github.com/relaybus/eventbus/internal/bus"
	codecpkg "github.com/relaybus/eventbus/internal/bus/codec"
	configpkg "github.com/relaybus/eventbus/internal/bus/config"
	errspkg "github.com/relaybus/eventbus/internal/bus/errors"
	loggingpkg "github.com/relaybus/eventbus/internal/bus/logging"
	metricspkg "github.com/relaybus/eventbus/internal/bus/metrics"
)

type (
	Bus                 = buspkg.Bus
	Message             = buspkg.Message
	Headers             = buspkg.Headers
	DeliveryOptions     = buspkg.DeliveryOptions
	ConsumerHandler     = buspkg.ConsumerHandler
	ExecutionContext    = buspkg.ExecutionContext
	WorkerContext       = buspkg.WorkerContext
	ContextGroup        = buspkg.ContextGroup
	Future              = buspkg.Future
	Interceptor         = buspkg.Interceptor
	OutboundInterceptor = buspkg.OutboundInterceptor

	Config = configpkg.Config

	Codec         = codecpkg.Codec
	CodecRegistry = codecpkg.Registry

	Logger    = loggingpkg.Logger
	LogFields = loggingpkg.LogFields

	MetricsSink = metricspkg.Sink
	Prometheus  = metricspkg.Prometheus

	FailureType = errspkg.FailureType
	ReplyError  = errspkg.ReplyError
)

var (
	NewBus                = buspkg.NewBus
	NewWorkerContext      = buspkg.NewWorkerContext
	NewContextGroup       = buspkg.NewContextGroup
	NewHeaders            = buspkg.NewHeaders
	NewTracingInterceptor = buspkg.NewTracingInterceptor

	NewSlogLogger       = loggingpkg.NewSlogLogger
	NewWatermillLogger  = loggingpkg.NewWatermillLogger
	NewWatermillAdapter = loggingpkg.NewWatermillAdapter

	NewPrometheusMetrics = metricspkg.NewPrometheus
	NoopMetrics          = metricspkg.Noop{}

	NewReplyError = errspkg.NewReplyError
	NoHandlers    = errspkg.NoHandlers
	Timeout       = errspkg.Timeout
)

// Sentinel errors surfaced by Bus methods, re-exported so callers can
// compare with errors.Is without importing internal/bus/errors directly.
var (
	ErrIllegalState     = errspkg.ErrIllegalState
	ErrAddressRequired  = errspkg.ErrAddressRequired
	ErrHandlerRequired  = errspkg.ErrHandlerRequired
	ErrContextRequired  = errspkg.ErrContextRequired
	ErrCodecNotFound    = errspkg.ErrCodecNotFound
	ErrBusRequired      = errspkg.ErrBusRequired
)

// Failure type constants for ReplyError.
const (
	FailureNoHandlers       = errspkg.FailureNoHandlers
	FailureTimeout          = errspkg.FailureTimeout
	FailureRecipientFailure = errspkg.FailureRecipientFailure
	FailureError            = errspkg.FailureError
)

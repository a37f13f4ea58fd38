// Package config holds the event bus's own configuration knobs -
// everything the ambient logging/metrics/tracing stack needs that is left
// to the surrounding application runtime.
package config

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultSendTimeout is used for DeliveryOptions.SendTimeout when the
// caller leaves it at zero.
const DefaultSendTimeout = 30 * time.Second

// Config groups the settings needed to bring a Bus up.
type Config struct {
	// DefaultSendTimeout is applied to request() calls whose
	// DeliveryOptions.SendTimeout is zero.
	DefaultSendTimeout time.Duration

	// MetricsEnabled turns on the Prometheus-backed metrics.Sink.
	MetricsEnabled bool
	// MetricsPort, when non-zero, exposes /metrics over HTTP.
	MetricsPort int

	// TracingEnabled wires an OpenTelemetry outbound interceptor onto the
	// Bus at construction time.
	TracingEnabled bool
	// Tracer is the tracer the wired interceptor uses when TracingEnabled
	// is set. A nil Tracer selects otel.Tracer("eventbus").
	Tracer trace.Tracer

	// WorkerContexts is the size of the default execution-context pool
	// handed out round-robin to consumers that do not supply their own
	// context.
	WorkerContexts int
	// WorkerQueueSize bounds each worker context's task queue.
	WorkerQueueSize int
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.DefaultSendTimeout <= 0 {
		c.DefaultSendTimeout = DefaultSendTimeout
	}
	if c.WorkerContexts <= 0 {
		c.WorkerContexts = 4
	}
	if c.WorkerQueueSize <= 0 {
		c.WorkerQueueSize = 256
	}
	return c
}

// Validate checks that the configuration values are internally consistent.
func (c *Config) Validate() error {
	var errs []error

	if c.DefaultSendTimeout < 0 {
		errs = append(errs, errors.New("config: default send timeout cannot be negative"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("config: invalid metrics port %d", c.MetricsPort))
	}
	if c.WorkerContexts < 0 {
		errs = append(errs, errors.New("config: worker context count cannot be negative"))
	}
	if c.WorkerQueueSize < 0 {
		errs = append(errs, errors.New("config: worker queue size cannot be negative"))
	}

	return errors.Join(errs...)
}

// Package metrics implements the metrics SPI the dispatch core reports
// lifecycle events to, backed by prometheus/client_golang counters and
// gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink receives dispatch lifecycle events. Every method must be safe for
// concurrent use; the dispatcher calls these inline on the hot path.
type Sink interface {
	HandlerRegistered(address string)
	HandlerUnregistered(address string)
	MessageSent(address string, mode string)
	MessageDelivered(address string, delivered bool)
	ReplyFailure(address string, failureType string)
}

// Noop is the zero-cost default Sink.
type Noop struct{}

func (Noop) HandlerRegistered(string)      {}
func (Noop) HandlerUnregistered(string)    {}
func (Noop) MessageSent(string, string)    {}
func (Noop) MessageDelivered(string, bool) {}
func (Noop) ReplyFailure(string, string)   {}

// Prometheus is a Sink backed by prometheus/client_golang counters/gauges,
// registered under the "eventbus" namespace.
type Prometheus struct {
	handlersActive  *prometheus.GaugeVec
	messagesSent    *prometheus.CounterVec
	messagesDone    *prometheus.CounterVec
	replyFailures   *prometheus.CounterVec
}

// NewPrometheus registers the eventbus metric collectors on reg. Pass
// prometheus.DefaultRegisterer for the common case.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		handlersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "handlers_active",
			Help:      "Number of live handler registrations per address.",
		}, []string{"address"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_sent_total",
			Help:      "Number of messages emitted, by dispatch mode.",
		}, []string{"address", "mode"}),
		messagesDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_delivered_total",
			Help:      "Number of scheduling outcomes, by whether delivery succeeded.",
		}, []string{"address", "delivered"}),
		replyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "reply_failures_total",
			Help:      "Number of request/reply failures, by failure type.",
		}, []string{"address", "type"}),
	}
	reg.MustRegister(p.handlersActive, p.messagesSent, p.messagesDone, p.replyFailures)
	return p
}

// Handler exposes the registered collectors over HTTP, gated by
// Config.MetricsPort.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *Prometheus) HandlerRegistered(address string) {
	p.handlersActive.WithLabelValues(address).Inc()
}

func (p *Prometheus) HandlerUnregistered(address string) {
	p.handlersActive.WithLabelValues(address).Dec()
}

func (p *Prometheus) MessageSent(address string, mode string) {
	p.messagesSent.WithLabelValues(address, mode).Inc()
}

func (p *Prometheus) MessageDelivered(address string, delivered bool) {
	label := "false"
	if delivered {
		label = "true"
	}
	p.messagesDone.WithLabelValues(address, label).Inc()
}

func (p *Prometheus) ReplyFailure(address string, failureType string) {
	p.replyFailures.WithLabelValues(address, failureType).Inc()
}

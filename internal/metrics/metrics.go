// Package metrics defines the Prometheus collectors for the trigger
// pipeline and the push gateway, and the scrape handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	EventsDispatched *prometheus.CounterVec
	HandlerPanics    *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	FanoutOutcomes   *prometheus.CounterVec
	GatewaySends     *prometheus.CounterVec
	GatewayTokens    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreka_trigger_events_total",
				Help: "Document change events dispatched, by collection and kind.",
			},
			[]string{"collection", "kind"},
		),
		HandlerPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreka_trigger_handler_panics_total",
				Help: "Trigger handler invocations that panicked, by handler.",
			},
			[]string{"handler"},
		),
		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dreka_trigger_handler_duration_seconds",
				Help:    "Trigger handler latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"handler"},
		),
		FanoutOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreka_fanout_outcomes_total",
				Help: "Notification fan-out results by handler and outcome (sent, no_audience, no_token, ...).",
			},
			[]string{"handler", "outcome"},
		),
		GatewaySends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreka_push_sends_total",
				Help: "Push gateway calls by addressing mode and result.",
			},
			[]string{"mode", "result"},
		),
		GatewayTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreka_push_tokens_total",
				Help: "Per-token delivery results reported by the push provider.",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.EventsDispatched,
			m.HandlerPanics,
			m.HandlerDuration,
			m.FanoutOutcomes,
			m.GatewaySends,
			m.GatewayTokens,
		)
	}
	return m
}

func (m *Metrics) ObserveEvent(collection, kind string) {
	if m == nil {
		return
	}
	m.EventsDispatched.WithLabelValues(collection, kind).Inc()
}

func (m *Metrics) ObservePanic(handler string) {
	if m == nil {
		return
	}
	m.HandlerPanics.WithLabelValues(handler).Inc()
}

func (m *Metrics) ObserveHandler(handler string, took time.Duration) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

func (m *Metrics) ObserveOutcome(handler, outcome string) {
	if m == nil {
		return
	}
	m.FanoutOutcomes.WithLabelValues(handler, outcome).Inc()
}

// ObserveSend records one gateway call. err decides the result label.
func (m *Metrics) ObserveSend(mode string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewaySends.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) ObserveTokens(success, failure int) {
	if m == nil {
		return
	}
	if success > 0 {
		m.GatewayTokens.WithLabelValues("ok").Add(float64(success))
	}
	if failure > 0 {
		m.GatewayTokens.WithLabelValues("error").Add(float64(failure))
	}
}

// Handler returns the scrape handler for the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

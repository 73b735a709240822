// Package observability exposes the Prometheus collectors of the bot.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "calcounter"

var (
	inboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "inbound_events_total",
		Help:      "Inbound chat events by kind.",
	}, []string{"kind"})
	commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "commands_total",
		Help:      "Commands received by name.",
	}, []string{"command"})
	staleTaps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "stale_button_taps_total",
		Help:      "Button taps that no longer matched the conversation state.",
	})
	extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extraction",
		Name:      "requests_total",
		Help:      "Nutrition extraction requests by source and outcome.",
	}, []string{"source", "outcome"})
	extractionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "extraction",
		Name:      "duration_seconds",
		Help:      "Latency of nutrition extraction calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"source"})
	flowsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "flow",
		Name:      "completed_total",
		Help:      "Conversation flows that reached their terminal step.",
	}, []string{"flow"})
	activeUserQueues = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "active_user_queues",
		Help:      "Users with a running event worker.",
	})
)

func init() {
	prometheus.MustRegister(inboundEvents, commands, staleTaps, extractions, extractionLatency, flowsCompleted, activeUserQueues)
}

// RecordInbound counts an inbound event.
func RecordInbound(kind string) {
	inboundEvents.WithLabelValues(kind).Inc()
}

// RecordCommand counts a received command.
func RecordCommand(name string) {
	commands.WithLabelValues(name).Inc()
}

// RecordStaleTap counts a button tap that was ignored.
func RecordStaleTap() {
	staleTaps.Inc()
}

// RecordExtraction records the outcome and latency of one extraction call.
func RecordExtraction(source string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	extractions.WithLabelValues(source, outcome).Inc()
	extractionLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordFlowCompleted counts a finished conversation flow.
func RecordFlowCompleted(flow string) {
	flowsCompleted.WithLabelValues(flow).Inc()
}

// SetActiveUserQueues reports the number of running per-user workers.
func SetActiveUserQueues(n int) {
	activeUserQueues.Set(float64(n))
}

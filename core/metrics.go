package orchestration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "fastvoicechat"

type metrics struct {
	stateTransitions  *prometheus.CounterVec
	bargeIns          *prometheus.CounterVec
	staleResults      *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	droppedFrames     *prometheus.CounterVec
	turnSignals       *prometheus.CounterVec
	cycleOutcomes     *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)
	return &metrics{
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_transitions_total",
			Help:      "Orchestrator state transitions.",
		}, []string{"from", "to"}),
		bargeIns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "barge_ins_total",
			Help:      "Speech onsets detected during playback, by whether interrupting was allowed.",
		}, []string{"allowed"}),
		staleResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_generation_results_total",
			Help:      "Generation results dropped because a newer request superseded them.",
		}, []string{"kind"}),
		generationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "generation_latency_seconds",
			Help:      "Time from generation request to result.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 12),
		}, []string{"kind"}),
		droppedFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_frames_total",
			Help:      "Audio frames dropped from full frame queues.",
		}, []string{"queue"}),
		turnSignals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "turn_signals_total",
			Help:      "Turn signals emitted by the turn detector.",
		}, []string{"kind"}),
		cycleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_outcomes_total",
			Help:      "Finished utterance cycles by outcome.",
		}, []string{"outcome"}),
	}
}

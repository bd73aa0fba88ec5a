package dialogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_state_transitions_total",
		Help: "Turn controller state transitions",
	}, []string{"from", "to"})

	metricFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_turns_finalized_total",
		Help: "Turns finalized by cause (final, stream_ended, silence, hard_timeout, capture_unavailable)",
	}, []string{"cause"})

	metricAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_answers_total",
		Help: "Answer records written by outcome (answered, timeout)",
	}, []string{"outcome"})

	metricDuplicateAnswers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_duplicate_answers_total",
		Help: "Second writes for an already answered question that were dropped",
	})

	metricRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_rejected_callbacks_total",
		Help: "Async callbacks ignored by the floor guard",
	}, []string{"op", "reason"})

	metricCaptureUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_capture_unavailable_total",
		Help: "Turns where the capture stream could not be opened",
	})

	metricSpeechFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_speech_output_failures_total",
		Help: "Prompts whose playback failed",
	})

	metricRepeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_repeats_total",
		Help: "Repeat question requests",
	})

	metricResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_resets_total",
		Help: "Assessments reset before completion",
	})

	metricSinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_sink_failures_total",
		Help: "Patient records the sink refused",
	})

	metricTurnDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dialogue_turn_duration_ms",
		Help:    "Time from prompt start to finalize",
		Buckets: prometheus.ExponentialBuckets(250, 1.6, 10),
	})
)

package voicews

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicews_messages_total",
		Help: "Websocket messages by direction (in, out) and type",
	}, []string{"direction", "type"})

	metricSendDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicews_send_drops_total",
		Help: "Outbound messages dropped because the client queue was full",
	})

	metricActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicews_active_clients",
		Help: "Connected browser clients",
	})

	metricReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicews_clients_replaced_total",
		Help: "Connections closed because the same assessment reconnected",
	})

	metricTranscriptDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicews_transcript_drops_total",
		Help: "Transcript updates dropped because the stream buffer was full",
	})

	metricTTSFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicews_tts_fallbacks_total",
		Help: "Prompts sent without rendered audio after synthesis failed",
	})

	metricSpeakMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicews_speak_duration_ms",
		Help:    "Time from speak command to speech_ended",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})

	metricCaptureOpenMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicews_capture_open_ms",
		Help:    "Time from start_capture to capture_started",
		Buckets: prometheus.ExponentialBuckets(10, 1.6, 12),
	})
)

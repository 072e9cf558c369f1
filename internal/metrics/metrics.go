package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visionary_sessions_active",
		Help: "Live sessions currently connecting or connected",
	})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionary_sessions_started_total",
		Help: "Session start attempts that acquired resources",
	})

	SessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionary_session_errors_total",
		Help: "Session errors by code",
	}, []string{"code"})

	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionary_frames_sent_total",
		Help: "Screen frames submitted to the live session",
	})

	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionary_frames_skipped_total",
		Help: "Sampler ticks skipped because the video was not ready",
	})

	AudioChunksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionary_audio_chunks_sent_total",
		Help: "Microphone chunks submitted to the live session",
	})

	PlaybackScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionary_playback_buffers_scheduled_total",
		Help: "Output audio buffers scheduled for playback",
	})

	Interruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionary_interruptions_total",
		Help: "Playback flushes triggered by remote interruption",
	})

	TranscriptLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionary_transcript_lines_total",
		Help: "Transcript lines emitted by speaker",
	}, []string{"speaker"})

	TranscriptSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionary_transcript_saves_total",
		Help: "Transcript persistence attempts by result",
	}, []string{"result"})

	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionary_api_requests_total",
		Help: "Transcript API requests by status code",
	}, []string{"code"})

	BlobPutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visionary_blob_put_duration_seconds",
		Help:    "Blob store write latency",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"backend"})
)

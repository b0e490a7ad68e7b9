package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Batch persistence
var (
	// BatchFlushesTotal counts flushes by writer and outcome (ok/error)
	BatchFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrapup_batch_flushes_total",
			Help: "Batch flushes by writer and status",
		},
		[]string{"writer", "status"},
	)

	// BatchRowsTotal counts rows handed to flushes
	BatchRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrapup_batch_rows_total",
			Help: "Rows attempted by batch flushes",
		},
		[]string{"writer"},
	)

	BatchFlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wrapup_batch_flush_duration_seconds",
			Help:    "Batch flush duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"writer"},
	)
)

// History scans
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrapup_scans_total",
			Help: "History scans by status",
		},
		[]string{"status"},
	)

	ScanMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrapup_scan_messages_total",
			Help: "Messages aggregated by history scans",
		},
	)

	ScanPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrapup_scan_pages_total",
			Help: "History pages fetched from the gateway",
		},
	)

	ScanChannelFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrapup_scan_channel_failures_total",
			Help: "Channels whose traversal failed during a scan",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wrapup_scan_duration_seconds",
			Help:    "Wall time of history scans",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// Live listeners
var (
	VoiceSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrapup_voice_sessions_total",
			Help: "Closed voice sessions by outcome (saved/discarded/error)",
		},
		[]string{"outcome"},
	)

	PresenceTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wrapup_presence_tracked_users",
			Help: "Users currently present in a voice channel",
		},
	)

	BumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrapup_bumps_total",
			Help: "Bump notices by outcome (saved/unresolved/ambiguous/error)",
		},
		[]string{"outcome"},
	)

	EmojiUsagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrapup_emoji_usages_total",
			Help: "Emoji occurrences recorded from live messages",
		},
	)
)

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FacesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "faces_ingested_total",
		Help:      "Faces reconciled into a group, by outcome",
	}, []string{"outcome"}) // matched, new_temporary, new_permanent, error

	MatchDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "match_decisions_total",
		Help:      "Recognizer candidates accepted or rejected by the confidence policy",
	}, []string{"decision"}) // accepted, rejected, uncertain, stale, no_match, no_corpus

	RecognizerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "recognizer_duration_seconds",
		Help:      "Duration of calls to the external detector and recognizer",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "merges_total",
		Help:      "Merge operations, by result",
	}, []string{"result"}) // ok, partial, rejected

	SamplesMoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "samples_moved_total",
		Help:      "Samples relocated by merges",
	})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "storage_errors_total",
		Help:      "Filesystem errors in the identity store, by operation",
	}, []string{"op"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	EventsAudited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "events_audited_total",
		Help:      "Identity events written to the audit log, by type",
	}, []string{"type"})
)

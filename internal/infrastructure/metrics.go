package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the upload/normalize/export pipeline, exposed on
// GET /metrics via promhttp.
var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanpulse",
		Name:      "uploads_total",
		Help:      "Uploads received, by source format.",
	}, []string{"format"})

	RowsNormalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loanpulse",
		Name:      "rows_normalized_total",
		Help:      "Rows kept after normalization.",
	})

	RowsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanpulse",
		Name:      "rows_dropped_total",
		Help:      "Rows dropped during normalization, by reason.",
	}, []string{"reason"})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loanpulse",
		Name:      "exports_total",
		Help:      "Completed exports, by format.",
	}, []string{"format"})
)

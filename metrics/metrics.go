// Package metrics exposes the prometheus counters and histograms the
// request drivers update, following index_manager.go's ReindexTaskCount /
// ReindexDuration style of package-level vectors labeled by the relevant
// keys rather than one metric per object.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var UpdateFanout = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sindex",
	Subsystem: "update",
	Name:      "fanout_total",
}, []string{"target"}) // "local" or "remote"

var UpdateDispatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sindex",
	Subsystem: "update",
	Name:      "dispatch_failures_total",
}, []string{"reason"})

var UpdateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sindex",
	Subsystem: "update",
	Name:      "duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"mode"}) // "replace" or "update_only"

var InternalResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sindex",
	Subsystem: "internal",
	Name:      "results_total",
}, []string{"action", "result"})

var FindDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sindex",
	Subsystem: "find",
	Name:      "duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"mode"}) // "intersect" or "unite"

var FindErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sindex",
	Subsystem: "find",
	Name:      "errors_total",
}, []string{"mode"})

func init() {
	prometheus.MustRegister(
		UpdateFanout,
		UpdateDispatchFailures,
		UpdateDuration,
		InternalResults,
		FindDuration,
		FindErrors,
	)
}

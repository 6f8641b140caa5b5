package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records intake and matching outcomes.
type DispatchMetrics struct {
	submissions    *prometheus.CounterVec
	assignments    *prometheus.CounterVec
	conflicts      prometheus.Counter
	searchDuration prometheus.Histogram
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panic_submissions_total",
		Help: "Panic submissions by outcome (accepted or the rejecting guard).",
	}, []string{"outcome"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_assignments_total",
		Help: "Provider assignment attempts by outcome.",
	}, []string{"outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_assignment_conflicts_total",
		Help: "Assignment attempts lost to a concurrent claim on the same provider.",
	})
	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nearest_provider_search_seconds",
		Help:    "Duration of nearest-provider searches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(submissions, assignments, conflicts, searchDuration)
	return &DispatchMetrics{
		submissions:    submissions,
		assignments:    assignments,
		conflicts:      conflicts,
		searchDuration: searchDuration,
	}
}

// IncSubmission increments the submission counter for the given outcome.
func (d *DispatchMetrics) IncSubmission(outcome string) {
	if d == nil || d.submissions == nil {
		return
	}
	d.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncAssignment increments the assignment counter for the given outcome.
func (d *DispatchMetrics) IncAssignment(outcome string) {
	if d == nil || d.assignments == nil {
		return
	}
	d.assignments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncConflict increments the lost-claim counter.
func (d *DispatchMetrics) IncConflict() {
	if d == nil || d.conflicts == nil {
		return
	}
	d.conflicts.Inc()
}

// ObserveSearchDuration records the duration of one nearest-provider search.
func (d *DispatchMetrics) ObserveSearchDuration(duration time.Duration) {
	if d == nil || d.searchDuration == nil {
		return
	}
	d.searchDuration.Observe(duration.Seconds())
}

// Package metrics exposes optional Prometheus instrumentation for the
// worker engine. Every method is safe to call on a nil *Registry — metrics
// are an external collaborator (per the purpose spec's framing of
// observability as out of the core's scope), so a manager built without
// one must behave identically, just without the counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels used on the tasks-processed counter.
const (
	OutcomeSuccess   = "success"
	OutcomeFail      = "fail"
	OutcomeFinalFail = "final_fail"
	OutcomeSkipped   = "skipped"
)

// Registry bundles the instruments the worker engine reports against. A
// nil *Registry is valid and makes every recording method a no-op.
type Registry struct {
	tickDuration *prometheus.HistogramVec
	processed    *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
}

// NewRegistry constructs a Registry and registers its instruments against
// reg (typically prometheus.NewRegistry() or prometheus.DefaultRegisterer).
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "procrastinator_tick_duration_seconds",
			Help:    "Duration of one QueueWorker.Act tick, by queue.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procrastinator_tasks_processed_total",
			Help: "Tasks processed, by queue and outcome.",
		}, []string{"queue", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procrastinator_queue_depth",
			Help: "Runnable rows observed on the most recent tick, by queue.",
		}, []string{"queue"}),
	}
	reg.MustRegister(r.tickDuration, r.processed, r.queueDepth)
	return r
}

// ObserveTick records how long one tick of queueName took.
func (r *Registry) ObserveTick(queueName string, d time.Duration) {
	if r == nil {
		return
	}
	r.tickDuration.WithLabelValues(queueName).Observe(d.Seconds())
}

// IncProcessed records one task outcome for queueName.
func (r *Registry) IncProcessed(queueName, outcome string) {
	if r == nil {
		return
	}
	r.processed.WithLabelValues(queueName, outcome).Inc()
}

// SetQueueDepth records the number of runnable rows seen on the latest tick.
func (r *Registry) SetQueueDepth(queueName string, depth int) {
	if r == nil {
		return
	}
	r.queueDepth.WithLabelValues(queueName).Set(float64(depth))
}

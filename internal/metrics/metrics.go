// Package metrics counts domain events next to the HTTP metrics served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the domain counters.
type Recorder struct {
	created             *prometheus.CounterVec
	replaced            *prometheus.CounterVec
	validationFailures  *prometheus.CounterVec
	attachmentRollbacks prometheus.Counter
}

// New registers the counters with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "entities_created_total",
			Help:      "Entities created, by entity type.",
		}, []string{"entity"}),
		replaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "entities_replaced_total",
			Help:      "Entities replaced, by entity type.",
		}, []string{"entity"}),
		validationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "validation_failures_total",
			Help:      "Rejected create and replace requests, by entity type.",
		}, []string{"entity"}),
		attachmentRollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "itsm",
			Name:      "attachment_rollbacks_total",
			Help:      "Attachment creations rolled back after a failed payload write.",
		}),
	}
}

// Created counts a created entity.
func (r *Recorder) Created(entity string) {
	r.created.WithLabelValues(entity).Inc()
}

// Replaced counts a replaced entity.
func (r *Recorder) Replaced(entity string) {
	r.replaced.WithLabelValues(entity).Inc()
}

// ValidationFailed counts a rejected request.
func (r *Recorder) ValidationFailed(entity string) {
	r.validationFailures.WithLabelValues(entity).Inc()
}

// AttachmentRolledBack counts an attachment rollback.
func (r *Recorder) AttachmentRolledBack() {
	r.attachmentRollbacks.Inc()
}

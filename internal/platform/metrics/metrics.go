package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the gate.
type Metrics struct {
	RegistrationsTotal prometheus.Counter
	AccessChecksTotal  *prometheus.CounterVec
	RoleChangesTotal   prometheus.Counter
	AssignConflicts    prometheus.Counter
	AuthorizeDuration  prometheus.Histogram
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "primegate_registrations_total",
			Help: "Total number of user records created through registration",
		}),
		AccessChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "primegate_access_checks_total",
			Help: "Session gate decisions partitioned by outcome",
		}, []string{"outcome"}),
		RoleChangesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "primegate_role_changes_total",
			Help: "Total number of effective role or approval transitions",
		}),
		AssignConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "primegate_assign_role_conflicts_total",
			Help: "Optimistic concurrency conflicts observed during role assignment",
		}),
		AuthorizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "primegate_authorize_duration_ms",
			Help:    "Latency of authorization lookups in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

// IncAccessCheck records one session gate decision.
func (m *Metrics) IncAccessCheck(outcome string) {
	if m != nil {
		m.AccessChecksTotal.WithLabelValues(outcome).Inc()
	}
}

// IncRegistration records one completed registration.
func (m *Metrics) IncRegistration() {
	if m != nil {
		m.RegistrationsTotal.Inc()
	}
}

// IncRoleChange records one effective role/approval transition.
func (m *Metrics) IncRoleChange() {
	if m != nil {
		m.RoleChangesTotal.Inc()
	}
}

// IncAssignConflict records one optimistic concurrency conflict.
func (m *Metrics) IncAssignConflict() {
	if m != nil {
		m.AssignConflicts.Inc()
	}
}

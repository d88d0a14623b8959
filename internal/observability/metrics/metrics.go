package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking flow.
type BookingMetrics struct {
	transitionsTotal  *prometheus.CounterVec
	conflictsTotal    prometheus.Counter
	persistFailures   prometheus.Counter
	remindersTotal    *prometheus.CounterVec
	assistantFailures prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbot",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total state machine transitions by resulting state",
		}, []string{"state"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salonbot",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Total slot conflicts detected",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salonbot",
			Subsystem: "session",
			Name:      "persist_failures_total",
			Help:      "Total failed session snapshot writes",
		}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbot",
			Subsystem: "reminder",
			Name:      "jobs_total",
			Help:      "Total reminder jobs by outcome",
		}, []string{"outcome"}),
		assistantFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salonbot",
			Subsystem: "assistant",
			Name:      "failures_total",
			Help:      "Total free-form generator failures",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.conflictsTotal, m.persistFailures, m.remindersTotal, m.assistantFailures)
	return m
}

func (m *BookingMetrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(state).Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObservePersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// ObserveReminder records a reminder job outcome: scheduled, fired, or failed.
func (m *BookingMetrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveAssistantFailure() {
	if m == nil {
		return
	}
	m.assistantFailures.Inc()
}

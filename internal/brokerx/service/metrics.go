package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the services report to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Signups          prometheus.Counter
	Activations      prometheus.Counter
	Logins           *prometheus.CounterVec
	MFAChallenges    *prometheus.CounterVec
	DepositRequests  *prometheus.CounterVec
	Settlements      *prometheus.CounterVec
	SettlementTiming prometheus.Histogram
	AuditDropped     prometheus.Counter
	AuditWritten     *prometheus.CounterVec
	Tasks            *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Signups: f.NewCounter(prometheus.CounterOpts{
			Name: "brokerx_signups_total",
			Help: "Clients created through signup",
		}),
		Activations: f.NewCounter(prometheus.CounterOpts{
			Name: "brokerx_client_activations_total",
			Help: "Clients moved to Active",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerx_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		MFAChallenges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerx_mfa_challenges_total",
			Help: "MFA challenge events by type and outcome",
		}, []string{"type", "outcome"}),
		DepositRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerx_deposit_requests_total",
			Help: "Deposit requests, split into new and replayed idempotency keys",
		}, []string{"kind"}),
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerx_settlements_total",
			Help: "Settlement callbacks by resulting status",
		}, []string{"status"}),
		SettlementTiming: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "brokerx_settlement_duration_seconds",
			Help:    "Time spent applying a settlement callback",
			Buckets: prometheus.DefBuckets,
		}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "brokerx_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		}),
		AuditWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerx_audit_events_written_total",
			Help: "Audit events written per sink and result",
		}, []string{"sink", "result"}),
		Tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerx_background_tasks_total",
			Help: "Detached background tasks by name and result",
		}, []string{"task", "result"}),
	}
}

func (m *Metrics) signup() {
	if m != nil {
		m.Signups.Inc()
	}
}

func (m *Metrics) activated() {
	if m != nil {
		m.Activations.Inc()
	}
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) mfaChallenge(kind, outcome string) {
	if m != nil {
		m.MFAChallenges.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) depositRequest(kind string) {
	if m != nil {
		m.DepositRequests.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) settlement(status string, took time.Duration) {
	if m != nil {
		m.Settlements.WithLabelValues(status).Inc()
		m.SettlementTiming.Observe(took.Seconds())
	}
}

func (m *Metrics) auditDropped() {
	if m != nil {
		m.AuditDropped.Inc()
	}
}

func (m *Metrics) auditWritten(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AuditWritten.WithLabelValues(sink, result).Inc()
}

func (m *Metrics) taskStarted(name string) {
	if m != nil {
		m.Tasks.WithLabelValues(name, "started").Inc()
	}
}

func (m *Metrics) taskFailed(name string) {
	if m != nil {
		m.Tasks.WithLabelValues(name, "failed").Inc()
	}
}

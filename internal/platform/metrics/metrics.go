package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trust & safety engine.
type Metrics struct {
	MessagesScored      prometheus.Counter
	MessagesFlagged     prometheus.Counter
	RateLimitDenials    *prometheus.CounterVec
	EventsRecorded      *prometheus.CounterVec
	ReviewTasksCreated  prometheus.Counter
	EscalationAlarms    prometheus.Counter
	VerificationResults *prometheus.CounterVec
	LoginDenials        *prometheus.CounterVec
	CryptoOpDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MessagesScored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_messages_scored_total",
			Help: "Messages evaluated by the content risk scorer",
		}),
		MessagesFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_messages_flagged_total",
			Help: "Messages whose suspicion score exceeded the threshold",
		}),
		RateLimitDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_rate_limit_denials_total",
			Help: "Admissions rejected by the sliding-window rate limiter",
		}, []string{"policy"}),
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_security_events_total",
			Help: "Security events recorded in the audit log",
		}, []string{"severity"}),
		ReviewTasksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_review_tasks_created_total",
			Help: "Manual review tasks auto-created for high-severity events",
		}),
		EscalationAlarms: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_escalation_alarms_total",
			Help: "Security events that could not be persisted after retries",
		}),
		VerificationResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_verification_results_total",
			Help: "Identity and certification verification outcomes",
		}, []string{"facet", "status"}),
		LoginDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_login_denials_total",
			Help: "Logins rejected by the verification gate",
		}, []string{"reason"}),
		CryptoOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aegis_crypto_op_duration_seconds",
			Help:    "Envelope encryption and decryption latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

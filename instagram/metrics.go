package instagram

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "instagram"

// Callback outcomes, used as the "outcome" label of callbacks_total.
const (
	outcomeSuccess           = "success"
	outcomeMalformed         = "malformed"
	outcomeInvalidState      = "invalid_state"
	outcomeCorrelationFailed = "correlation_failed"
	outcomeExpired           = "expired"
	outcomeAccessDenied      = "access_denied"
	outcomeMissingCode       = "missing_code"
	outcomeBackchannelError  = "backchannel_error"
	outcomeRejected          = "rejected"
)

type metrics struct {
	challenges    prometheus.Counter
	callbacks     *prometheus.CounterVec
	exchangeTimes prometheus.Histogram
}

// newMetrics creates the handler's collectors and registers them with reg,
// when it isn't nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		challenges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "challenges_total",
			Help:      "Number of challenges issued.",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callbacks_total",
			Help:      "Number of callbacks handled, by outcome.",
		}, []string{"outcome"}),
		exchangeTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "token_exchange_duration_seconds",
			Help:      "Duration of authorization code exchanges with the provider.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.challenges, m.callbacks, m.exchangeTimes)
	}
	return m
}

func (m *metrics) callback(outcome string) {
	m.callbacks.WithLabelValues(outcome).Inc()
}

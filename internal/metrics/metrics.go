package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation outcomes
const (
	OutcomeValid     = "valid"
	OutcomeRefreshed = "refreshed"
	OutcomeMissing   = "missing_credentials"
	OutcomeInvalid   = "invalid_credentials"
	OutcomeRevoked   = "revoked"
	OutcomeUpstream  = "upstream_error"
)

// Result labels for refreshes and exchanges
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SessionValidations *prometheus.CounterVec
	TokenRefreshes     *prometheus.CounterVec
	CodeExchanges      *prometheus.CounterVec
	Revocations        prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
}

// New registers every collector on registry
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SessionValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotifeye_session_validations_total",
				Help: "Session token validations by outcome",
			},
			[]string{"outcome"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotifeye_token_refreshes_total",
				Help: "Upstream refresh-token exchanges by result",
			},
			[]string{"result"},
		),
		CodeExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotifeye_code_exchanges_total",
				Help: "Authorization code exchanges by result",
			},
			[]string{"result"},
		),
		Revocations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spotifeye_revocations_total",
				Help: "Session tokens revoked through logout",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotifeye_http_requests_total",
				Help: "HTTP requests by route pattern and status code",
			},
			[]string{"route", "status"},
		),
	}
}

func (m *Metrics) Validation(outcome string) {
	if m == nil {
		return
	}
	m.SessionValidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(err error) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Exchange(err error) {
	if m == nil {
		return
	}
	m.CodeExchanges.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.Revocations.Inc()
}

func (m *Metrics) Request(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

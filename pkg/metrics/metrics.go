package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "readinggroup", Name: "client_requests_total", Help: "Outgoing API requests by method and response code."},
		[]string{"method", "code"},
	)
	CredentialsCleared = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "readinggroup", Name: "credentials_cleared_total", Help: "Credential bundle removals by reason."},
		[]string{"reason"},
	)
	TokenRenewals = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "readinggroup", Name: "token_renewals_total", Help: "Access token renewal attempts by result."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "readinggroup", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "readinggroup", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

// Reasons recorded on CredentialsCleared.
const (
	ReasonLogout       = "logout"
	ReasonExpired      = "expired"
	ReasonUnauthorized = "unauthorized"
)

// RegisterClientCollectors registers the client-side counters only.
func RegisterClientCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ClientRequests, CredentialsCleared, TokenRenewals)
}

// RegisterCollectors registers every counter; used by the devbackend.
func RegisterCollectors(reg prometheus.Registerer) {
	RegisterClientCollectors(reg)
	reg.MustRegister(RateLimitAllowed, RateLimitRejected)
}

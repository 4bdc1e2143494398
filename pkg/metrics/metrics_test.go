package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterClientCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterClientCollectors(reg)

	ClientRequests.WithLabelValues("GET", "200").Inc()
	TokenRenewals.WithLabelValues("success").Inc()

	n, err := testutil.GatherAndCount(reg, "readinggroup_client_requests_total", "readinggroup_token_renewals_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	// rate limiter counters belong to the server registry only
	n, err = testutil.GatherAndCount(reg, "readinggroup_rate_limit_allowed_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)
	assert.Panics(t, func() { RegisterClientCollectors(reg) }, "double registration")

	before := testutil.ToFloat64(RateLimitRejected.WithLabelValues("redis"))
	RateLimitRejected.WithLabelValues("redis").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RateLimitRejected.WithLabelValues("redis")))

	expected := `
# HELP readinggroup_credentials_cleared_total Credential bundle removals by reason.
# TYPE readinggroup_credentials_cleared_total counter
readinggroup_credentials_cleared_total{reason="test"} 1
`
	CredentialsCleared.WithLabelValues("test").Inc()
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "readinggroup_credentials_cleared_total"))
}

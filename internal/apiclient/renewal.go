package apiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
)

// RenewalPolicy decides whether the refresh token is used to obtain a new
// access token instead of forcing a fresh login.
type RenewalPolicy int

const (
	// RenewNone never renews: expiry or a 401 always require a new login.
	RenewNone RenewalPolicy = iota
	// RenewOn401 renews once after a 401 and replays the request.
	RenewOn401
	// RenewBeforeExpiry renews before sending when the token is about to expire.
	RenewBeforeExpiry
)

func (p RenewalPolicy) String() string {
	switch p {
	case RenewOn401:
		return "on401"
	case RenewBeforeExpiry:
		return "before_expiry"
	}
	return "none"
}

// ParseRenewalPolicy accepts none, on401 and before_expiry.
func ParseRenewalPolicy(s string) (RenewalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RenewNone, nil
	case "on401":
		return RenewOn401, nil
	case "before_expiry":
		return RenewBeforeExpiry, nil
	}
	return RenewNone, fmt.Errorf("unknown renewal policy %q", s)
}

// renewStored renews with the refresh token currently in the store.
func (c *Client) renewStored(ctx context.Context) error {
	refresh, err := c.store.RefreshToken(ctx)
	if err != nil {
		return ErrNoRefreshToken
	}
	return c.renew(ctx, refresh)
}

// renew exchanges refresh for a new access token and stores a fresh bundle.
// Concurrent callers share one exchange. A failed exchange leaves the store as it
// was, except that a 401 from the refresh endpoint clears it like any other 401.
func (c *Client) renew(ctx context.Context, refresh string) error {
	_, err, _ := c.renewals.Do(refresh, func() (interface{}, error) {
		access, err := c.renewer.Renew(ctx, refresh)
		if err != nil {
			return nil, err
		}
		if access == "" {
			return nil, fmt.Errorf("empty access token")
		}
		c.store.SetCredentials(ctx, access, refresh)
		return nil, nil
	})
	if err != nil {
		metrics.TokenRenewals.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %v", ErrRenewalFailed, err)
	}
	metrics.TokenRenewals.WithLabelValues("success").Inc()
	return nil
}

package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
)

// LoginResult reports the outcome of a first- or second-factor login.
type LoginResult struct {
	OTPRequired bool
	UserID      string
	UserType    string
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	UserType     string `json:"userType"`
	OTPRequired  bool   `json:"otpRequired"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Me is the authenticated user as reported by the backend.
type Me struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	UserType string `json:"userType"`
}

// Login performs the first factor. When the account has a second factor the
// result has OTPRequired set and nothing is stored yet.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var resp loginResponse
	err := c.DoJSON(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   JSONBody{Value: map[string]string{"username": username, "password": password}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.OTPRequired {
		return &LoginResult{OTPRequired: true, UserID: resp.UserID}, nil
	}
	return c.storeLogin(ctx, resp)
}

// VerifyOTP completes a two-factor login.
func (c *Client) VerifyOTP(ctx context.Context, userID, code string) (*LoginResult, error) {
	var resp loginResponse
	err := c.DoJSON(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/verify-otp",
		Body:   JSONBody{Value: map[string]string{"userId": userID, "code": code}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.storeLogin(ctx, resp)
}

func (c *Client) storeLogin(ctx context.Context, resp loginResponse) (*LoginResult, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login response carried no access token")
	}
	c.store.SetCredentials(ctx, resp.AccessToken, resp.RefreshToken)
	c.store.SetProfile(ctx, resp.UserID, resp.UserType)
	logger.Infof("apiclient: logged in as user %s", resp.UserID)
	return &LoginResult{UserID: resp.UserID, UserType: resp.UserType}, nil
}

// Logout tells the backend to drop the refresh session, then clears local
// state whatever the backend answered. The backend error, if any, is returned.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if refresh, rerr := c.store.RefreshToken(ctx); rerr == nil {
		_, err = c.exchange(ctx, &Request{
			Method: http.MethodPost,
			Path:   "/auth/logout",
			Body:   JSONBody{Value: map[string]string{"refresh_token": refresh}},
		})
		if err != nil {
			logger.Warnf("apiclient: backend logout failed: %v", err)
		}
	}
	c.store.ClearCredentials(ctx)
	c.store.ClearProfile(ctx)
	metrics.CredentialsCleared.WithLabelValues(metrics.ReasonLogout).Inc()
	return err
}

// Me fetches the current user.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.DoJSON(ctx, &Request{Method: http.MethodGet, Path: "/api/v1/me"}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Renew implements Renewer against POST /auth/refresh.
func (c *Client) Renew(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}
	resp, err := c.exchange(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   JSONBody{Value: map[string]string{"refresh_token": refreshToken}},
	})
	if err != nil {
		return "", err
	}
	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Package apiclient is the single HTTP funnel to the readinggroup backend.
//
// Every call goes through Client.Do:
//
//	request hook (authTransport)  -> bearer token, content type, Accept-Language
//	network
//	response hook (Client.inspect) -> 401 clears credentials, 403 does not
//
// Failures always reach the caller as errors; the hooks only add side effects.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/credentials"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// maxResponseBody caps how much of a response body is kept in memory.
const maxResponseBody = 4 << 20

// LocaleFunc returns the active UI locale; "" falls back to the default locale.
type LocaleFunc func() string

// StaticLocale always reports l.
func StaticLocale(l string) LocaleFunc { return func() string { return l } }

// UnauthorizedFunc runs after credentials were cleared because of a 401.
// It is the place for a "send the user back to login" step.
type UnauthorizedFunc func(ctx context.Context, err *APIError)

// Renewer exchanges a refresh token for a new access token.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Store          *credentials.Store
	Locale         LocaleFunc
	DefaultLocale  string
	Timeout        time.Duration
	Renewal        RenewalPolicy
	RenewWindow    time.Duration
	Renewer        Renewer
	OnUnauthorized UnauthorizedFunc
	Transport      http.RoundTripper
}

// Client is safe for concurrent use. Create one and share it.
type Client struct {
	base           *url.URL
	store          *credentials.Store
	locale         LocaleFunc
	defaultLocale  string
	timeout        time.Duration
	renewal        RenewalPolicy
	renewWindow    time.Duration
	renewer        Renewer
	onUnauthorized UnauthorizedFunc
	http           *http.Client
	renewals       singleflight.Group
}

// New builds a Client. Store is required; a nil Renewer means the client renews
// through its own /auth/refresh call.
func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("apiclient: credential store is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base URL %q", opts.BaseURL)
	}
	c := &Client{
		base:           base,
		store:          opts.Store,
		locale:         opts.Locale,
		defaultLocale:  opts.DefaultLocale,
		timeout:        opts.Timeout,
		renewal:        opts.Renewal,
		renewWindow:    opts.RenewWindow,
		renewer:        opts.Renewer,
		onUnauthorized: opts.OnUnauthorized,
	}
	if c.defaultLocale == "" {
		c.defaultLocale = "en"
	}
	if c.renewWindow <= 0 {
		c.renewWindow = 5 * time.Minute
	}
	if c.renewer == nil {
		c.renewer = c
	}
	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.http = &http.Client{Transport: &authTransport{base: rt, client: c}}
	return c, nil
}

// Store exposes the credential store the client reads from.
func (c *Client) Store() *credentials.Store { return c.store }

// authTransport is the request-phase hook.
type authTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	t.client.prepare(out)
	return t.base.RoundTrip(out)
}

// prepare stamps the outgoing request. It reads local state only.
func (c *Client) prepare(req *http.Request) {
	// a redirect may point elsewhere; the bearer token only goes to the API host
	if req.URL.Host == c.base.Host {
		if tok := c.store.ValidAccessToken(req.Context()); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		} else {
			req.Header.Del("Authorization")
		}
	}
	if !isBinaryContentType(req.Header.Get("Content-Type")) {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	lang := ""
	if c.locale != nil {
		lang = c.locale()
	}
	if lang == "" {
		lang = c.defaultLocale
	}
	req.Header.Set("Accept-Language", lang)
}

func isBinaryContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "multipart/") || strings.HasPrefix(ct, "application/octet-stream")
}

// Do sends r and returns the read response. Responses with status >= 400 are
// returned as *APIError after the response hook ran.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	return c.do(ctx, r)
}

// DoJSON is Do followed by decoding the body into out (which may be nil).
func (c *Client) DoJSON(ctx context.Context, r *Request, out interface{}) error {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) do(ctx context.Context, r *Request) (*Response, error) {
	var refresh string
	switch c.renewal {
	case RenewBeforeExpiry:
		if c.store.ExpiresWithin(ctx, c.renewWindow) {
			if err := c.renewStored(ctx); err != nil {
				logger.Warnf("apiclient: renewal before expiry failed: %v", err)
			}
		}
	case RenewOn401:
		refresh, _ = c.store.RefreshToken(ctx)
	}

	resp, err := c.exchange(ctx, r)
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if refresh != "" {
		if rerr := c.renew(ctx, refresh); rerr != nil {
			logger.Warnf("apiclient: renewal after 401 failed: %v", rerr)
		} else {
			logger.Infof("apiclient: access token renewed after 401, replaying %s %s", apiErr.Method, apiErr.Path)
			resp, err = c.exchange(ctx, r)
			if err == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx, apiErr)
	}
	return nil, err
}

// exchange runs one request through both hooks, without renewal.
func (c *Client) exchange(ctx context.Context, r *Request) (*Response, error) {
	if c.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
	}
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	if apiErr := c.inspect(r, resp); apiErr != nil {
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, r *Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	u, err := c.resolve(r)
	if err != nil {
		return nil, err
	}
	body := r.Body
	if body == nil {
		body = NoBody{}
	}
	payload, contentType, err := body.encode()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ClientRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, r.Path, err)
	}
	defer resp.Body.Close()
	metrics.ClientRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, r.Path, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: bytes.TrimSpace(raw)}, nil
}

// inspect is the response-phase hook. It never turns a failure into a success.
func (c *Client) inspect(r *Request, resp *Response) *APIError {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	apiErr := &APIError{
		Method:     method,
		Path:       r.Path,
		StatusCode: resp.StatusCode,
		Status:     fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Body:       resp.Body,
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		logger.Infof("apiclient: %s %s rejected with 401, clearing credentials", method, r.Path)
		// clear even when the caller's context is already cancelled
		c.store.ClearCredentials(context.Background())
		metrics.CredentialsCleared.WithLabelValues(metrics.ReasonUnauthorized).Inc()
	case http.StatusForbidden:
		// authenticated but not allowed; the bundle stays
		logger.Debugf("apiclient: %s %s forbidden", method, r.Path)
	}
	return apiErr
}

func (c *Client) resolve(r *Request) (string, error) {
	ref, err := url.Parse(r.Path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", r.Path, err)
	}
	var u *url.URL
	if ref.IsAbs() {
		u = ref
	} else {
		u = c.base.JoinPath(ref.Path)
		if ref.RawQuery != "" {
			u.RawQuery = ref.RawQuery
		}
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Package github is the GitHub REST v3 transport of the crawler
package github

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"commitcrawl/internal/core/paginate"
	"commitcrawl/internal/core/quota"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseURLDefault   = "https://api.github.com"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "commitcrawl"
	defaultPerPage   = 100
	defaultMaxRetry  = 4
	defaultRetryBase = 500 * time.Millisecond
	maxRetryInterval = 30 * time.Second
	maxBody          = 32 << 20

	acceptV3 = "application/vnd.github.v3+json"
)

// Options configures the Client
type Options struct {
	BaseURL string
	Token   string
	// UserAgent identifies the caller; GitHub asks for the account login
	UserAgent string
	Timeout   time.Duration
	PerPage   int

	// Retry config for network failures and 5xx responses. Throttled
	// responses are not retried here; they go back through the Governor.
	MaxRetries int
	RetryBase  time.Duration
}

// Client issues authenticated GETs. Every attempt is admitted by the shared
// Governor and every response feeds it.
type Client struct {
	http *http.Client
	opts Options
	gov  *quota.Governor
	log  logger.Logger
	now  func() time.Time
}

// errThrottled marks an attempt that has to be re-issued after admission
var errThrottled = errors.New("github throttled")

// retryStatus is a 5xx that may succeed on a later attempt
type retryStatus struct{ status int }

func (e *retryStatus) Error() string { return "github transient status " + http.StatusText(e.status) }

// NewClient creates a Client with sane defaults. A nil governor gets a
// private one with default thresholds.
func NewClient(o Options, gov *quota.Governor) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.PerPage <= 0 || o.PerPage > 100 {
		o.PerPage = defaultPerPage
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if gov == nil {
		gov = quota.New(quota.Options{})
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		gov:  gov,
		log:  *logger.Named("github"),
		now:  time.Now,
	}
}

// Governor returns the quota governor this client reports to
func (c *Client) Governor() *quota.Governor { return c.gov }

// BaseURL returns the API root requests are issued against
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// Get implements paginate.Getter. Network failures and 5xx responses are
// retried with exponential backoff; once retries are spent a 5xx is returned
// as a response so callers see its status. Throttled responses are re-issued
// until the Governor admits them again or ctx ends.
func (c *Client) Get(ctx context.Context, r paginate.Request) (paginate.Response, error) {
	target := r.Target(c.opts.BaseURL)
	for {
		resp, err := backoff.RetryNotifyWithData(
			func() (paginate.Response, error) { return c.attempt(ctx, target) },
			c.policy(ctx),
			func(err error, d time.Duration) {
				logger.C(ctx).Warn().Err(err).Str("url", target).Dur("retry_in", d).Msg("github transient failure retrying")
			},
		)
		if errors.Is(err, errThrottled) {
			continue
		}
		var rs *retryStatus
		if errors.As(err, &rs) {
			return resp, nil
		}
		return resp, err
	}
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.RetryBase
	eb.MaxInterval = maxRetryInterval
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.MaxRetries)), ctx)
}

// attempt is one admitted round trip
func (c *Client) attempt(ctx context.Context, target string) (paginate.Response, error) {
	if err := c.gov.Acquire(ctx); err != nil {
		return paginate.Response{}, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return paginate.Response{}, backoff.Permanent(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "github new request %s", target))
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", acceptV3)
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return paginate.Response{}, backoff.Permanent(cerr)
		}
		return paginate.Response{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github get %s", target)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if cerr := resp.Body.Close(); cerr != nil {
		c.log.Debug().Err(cerr).Str("url", target).Msg("github close body failed")
	}
	if err != nil {
		return paginate.Response{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github read body %s", target)
	}

	rl := parseRateHeaders(resp.Header, c.now())
	if rl.known {
		c.gov.Observe(rl.remaining, rl.reset)
	}
	logger.C(ctx).Debug().
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Bool("rate_known", rl.known).
		Int("rate_remaining", rl.remaining).
		Time("rate_reset", rl.reset).
		Dur("retry_after", rl.retryAfter).
		Msg("github http response")

	out := paginate.Response{URL: target, Status: resp.StatusCode, Header: resp.Header, Body: body}
	switch {
	case isThrottled(resp.StatusCode, rl):
		c.gov.ObserveThrottle(rl.reset, rl.retryAfter)
		logger.C(ctx).Warn().
			Int("status", resp.StatusCode).
			Time("rate_reset", rl.reset).
			Dur("retry_after", rl.retryAfter).
			Str("url", target).
			Msg("github rate limited, re-queuing request")
		return out, backoff.Permanent(errThrottled)
	case resp.StatusCode >= 500:
		return out, &retryStatus{status: resp.StatusCode}
	}
	return out, nil
}

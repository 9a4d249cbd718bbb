// Package client talks to the scanner backend over its HTTP/JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/bl4ck0w1/secdash/internal/apierrors"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

const (
	DefaultBaseURL          = "http://localhost:8000"
	DefaultMaxResponseBytes = 32 << 20
)

// TokenSource is where the bearer token lives between invocations.
type TokenSource interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}

type Config struct {
	BaseURL       string        `mapstructure:"url" yaml:"url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	RateLimit     float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst         int           `mapstructure:"burst" yaml:"burst"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	RefreshBefore time.Duration `mapstructure:"refresh_before" yaml:"refresh_before"`
	// MaxResponseBytes caps a response body; larger bodies fail the request.
	MaxResponseBytes int64 `mapstructure:"max_response_bytes" yaml:"max_response_bytes"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       30 * time.Second,
		UserAgent:     "SecurityScanner/1.0",
		RateLimit:     10,
		Burst:         5,
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
		RefreshBefore: 2 * time.Minute,

		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	limiter *RateLimiter
	metrics *utils.MetricsCollector
	logger  *logrus.Logger
	cfg     Config
	now     func() time.Time

	refreshMu sync.Mutex
}

func New(cfg Config, tokens TokenSource, metrics *utils.MetricsCollector, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = def.MaxResponseBytes
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", cfg.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	httpClient := utils.DefaultHTTPClient(cfg.Timeout)
	httpClient.Jar = jar

	return &Client{
		baseURL: base,
		http:    httpClient,
		tokens:  tokens,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.Burst, logger),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetUserAgent overrides the configured User-Agent, normally from settings.
func (c *Client) SetUserAgent(ua string) {
	if ua = strings.TrimSpace(ua); ua != "" {
		c.cfg.UserAgent = ua
	}
}

func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

type request struct {
	op     string
	method string
	route  string // path template, used as the metrics label
	path   string
	query  url.Values
	body   interface{}

	noAuth    bool // no Authorization header
	noRefresh bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
// Only idempotent methods are retried.
func (c *Client) do(ctx context.Context, req request, out interface{}) (*response, error) {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.op, err)
		}
	}

	if !req.noAuth && !req.noRefresh {
		c.maybeRefresh(ctx)
	}

	attempts := 1
	switch req.method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodPut:
		attempts += c.cfg.MaxRetries
	}

	requestID := uuid.NewString()
	log := utils.WithRequestID(utils.WithComponent(c.logger, "api_client"), requestID).WithField("op", req.op)

	var resp *response
	try := 0
	err := utils.RetryWithContext(ctx, attempts, c.cfg.RetryDelay, apierrors.IsRetryable, func() error {
		try++
		if try > 1 {
			c.metrics.IncCounter(utils.MetricRetriesTotal, 1, prometheus.Labels{"route": req.route})
			log.Debugf("Retrying %s %s (attempt %d/%d)", req.method, req.path, try, attempts)
		}
		var err error
		resp, err = c.send(ctx, req, payload, requestID)
		return err
	})
	if err != nil {
		var apiErr *apierrors.APIError
		if errors.As(err, &apiErr) {
			log.Debugf("%s %s: %v", req.method, req.path, apiErr)
			return nil, apiErr
		}
		return nil, err
	}

	if out != nil && len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return resp, fmt.Errorf("decode %s response: %w", req.op, err)
		}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req request, payload []byte, requestID string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// req.path carries already escaped ids, so it goes into RawPath as is.
	u := *c.baseURL
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + req.path
	p, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.op, err)
	}
	u.Path = p
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if !req.noAuth && c.tokens != nil {
		if tok, err := c.tokens.Token(); err != nil {
			c.logger.Warnf("Failed to read auth token: %v", err)
		} else if tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	c.metrics.ObserveHistogram(utils.MetricRequestDuration, time.Since(start).Seconds(),
		prometheus.Labels{"method": req.method, "route": req.route})
	if err != nil {
		c.metrics.IncCounter(utils.MetricRequestsTotal, 1,
			prometheus.Labels{"method": req.method, "route": req.route, "status": "error"})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apierrors.NewTransportError(req.op, err)
	}
	defer httpResp.Body.Close()

	c.metrics.IncCounter(utils.MetricRequestsTotal, 1,
		prometheus.Labels{"method": req.method, "route": req.route, "status": strconv.Itoa(httpResp.StatusCode)})

	limit := c.cfg.MaxResponseBytes
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, limit+1))
	if err != nil {
		return nil, apierrors.NewTransportError(req.op, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s response exceeds %s", req.op, utils.HumanizeBytes(limit))
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		c.limiter.RecordSuccess()
		return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
	}

	switch httpResp.StatusCode {
	case http.StatusUnauthorized:
		c.dropToken()
	case http.StatusTooManyRequests:
		c.limiter.Throttle()
	}
	return nil, apierrors.FromResponse(req.op, httpResp.StatusCode, data)
}

// dropToken clears a token the backend rejected so the next run starts at login.
func (c *Client) dropToken() {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warnf("Failed to clear rejected auth token: %v", err)
		return
	}
	c.logger.Debug("Cleared rejected auth token")
}

// maybeRefresh renews a token whose exp claim falls within RefreshBefore.
// Failures are logged; the request then goes out with the old token.
func (c *Client) maybeRefresh(ctx context.Context) {
	if c.tokens == nil || c.cfg.RefreshBefore <= 0 {
		return
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tok, err := c.tokens.Token()
	if err != nil || tok == "" {
		return
	}
	exp, err := utils.TokenExpiry(tok)
	if err != nil {
		return
	}
	left := exp.Sub(c.now())
	if left <= 0 || left > c.cfg.RefreshBefore {
		return
	}
	c.logger.Debugf("Auth token expires in %s, refreshing", left.Round(time.Second))
	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Warnf("Token refresh failed: %v", err)
	}
}

func pathID(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}

func requireID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return &apierrors.APIError{Kind: apierrors.KindValidation, Op: op, Detail: "id is required"}
	}
	return nil
}

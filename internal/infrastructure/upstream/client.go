package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/listproxy/backend/internal/domain"
)

// Config holds the settings of the upstream client
type Config struct {
	BaseURL         string
	PrimaryAPIURL   string
	SecondaryAPIURL string
	Timeout         time.Duration
	UserAgent       string
	AcceptLanguage  string
	RatePerSecond   float64
	Burst           int
	// Retries is the number of extra attempts FetchResource makes after a
	// transport error, 429 or 5xx. Listing calls are never retried.
	Retries         int
	RetryWait       time.Duration
}

// Client handles communication with the proxied commerce site
type Client struct {
	// listings serves pipeline stages: one attempt per call, redirects
	// restricted to the configured hosts
	listings  *resty.Client
	// resources serves the raw passthrough: retried and free to follow redirects
	resources *resty.Client
	cfg       Config
	logger    *slog.Logger
}

// NewClient creates a new upstream client
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base URL %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "upstream")

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}

	listings := newRestyClient(cfg, limiter, logger).
		SetRedirectPolicy(resty.DomainCheckRedirectPolicy(allowedHosts(base, cfg)...))

	resources := newRestyClient(cfg, limiter, logger).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetRetryCount(max(cfg.Retries, 0)).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(4 * retryWait).
		AddRetryCondition(isRetryable)

	return &Client{listings: listings, resources: resources, cfg: cfg, logger: logger}, nil
}

// newRestyClient builds a client sharing the limiter, default headers and logging hooks
func newRestyClient(cfg Config, limiter *rate.Limiter, logger *slog.Logger) *resty.Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept-Language", cfg.AcceptLanguage)

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.Debug("upstream response",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"duration", res.Time().String())
		return nil
	})
	httpClient.OnError(func(req *resty.Request, err error) {
		logger.Warn("upstream request failed", "method", req.Method, "url", req.URL, "error", err)
	})
	return httpClient
}

// allowedHosts lists the hosts listing calls may be redirected to
func allowedHosts(base *url.URL, cfg Config) []string {
	hosts := []string{base.Hostname()}
	for _, endpoint := range []string{cfg.PrimaryAPIURL, cfg.SecondaryAPIURL} {
		if u, err := url.Parse(endpoint); err == nil && u.Hostname() != "" {
			hosts = append(hosts, u.Hostname())
		}
	}
	return hosts
}

// SearchPrimary queries the primary search API
func (c *Client) SearchPrimary(ctx context.Context, query domain.SearchQuery) ([]domain.ProductItem, error) {
	params := map[string]string{
		"page":  strconv.Itoa(max(query.Page, 1)),
		"limit": strconv.Itoa(query.Limit),
	}
	setIf(params, "sort", query.Sort)
	setIf(params, "order", query.Order)
	setIf(params, "keyword", query.Keyword)
	setIf(params, "category_id", query.CategoryID)

	body, err := c.getJSON(ctx, c.cfg.PrimaryAPIURL, params)
	if err != nil {
		return nil, err
	}

	var resp primaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: primary search: %v", domain.ErrUpstreamParse, err)
	}
	return MapPrimaryItems(resp.Items, c.cfg.BaseURL), nil
}

// SearchSecondary queries the on-sale search API
func (c *Client) SearchSecondary(ctx context.Context, query domain.SearchQuery) ([]domain.ProductItem, error) {
	params := map[string]string{
		"status": "on_sale",
		"page":   strconv.Itoa(max(query.Page, 1)),
		"limit":  strconv.Itoa(query.Limit),
	}
	setIf(params, "keyword", query.Keyword)
	setIf(params, "category_id", query.CategoryID)

	body, err := c.getJSON(ctx, c.cfg.SecondaryAPIURL, params)
	if err != nil {
		return nil, err
	}

	var resp secondaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: secondary search: %v", domain.ErrUpstreamParse, err)
	}
	return MapSecondaryItems(resp.Data.Items, c.cfg.BaseURL), nil
}

// FetchPage returns the HTML of an upstream page
func (c *Client) FetchPage(ctx context.Context, target domain.ProxyTarget) ([]byte, error) {
	res, err := c.listings.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(c.cfg.BaseURL + target.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamStatus, res.StatusCode())
	}
	return res.Body(), nil
}

// FetchResource fetches any upstream resource, forwarding the given request
// headers. Non-success statuses are returned to the caller as they are.
func (c *Client) FetchResource(ctx context.Context, target domain.ProxyTarget, header map[string]string) (*domain.Resource, error) {
	req := c.resources.R().SetContext(ctx)
	for k, v := range header {
		if v != "" {
			req.SetHeader(k, v)
		}
	}

	res, err := req.Get(c.cfg.BaseURL + target.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}

	return &domain.Resource{
		StatusCode:  res.StatusCode(),
		ContentType: res.Header().Get("Content-Type"),
		Header:      res.Header().Clone(),
		Body:        res.Body(),
	}, nil
}

// getJSON executes a GET against an API endpoint and returns the raw body
func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint not configured", domain.ErrUpstreamStatus)
	}

	res, err := c.listings.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamStatus, res.StatusCode())
	}
	return res.Body(), nil
}

// isRetryable retries transient failures; other 4xx answers are final
func isRetryable(res *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := res.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func setIf(params map[string]string, key, value string) {
	if value != "" {
		params[key] = value
	}
}

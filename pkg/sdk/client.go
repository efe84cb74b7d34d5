package catalogsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is the catalogsearch SDK entry point.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("catalogsearch: base URL required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("catalogsearch: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalogsearch: unsupported scheme %q", u.Scheme)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{baseURL: u, apiKey: cfg.apiKey, http: hc, obs: obs}, nil
}

// Search runs a natural-language product search.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (res SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observeSearch(query, start, res, err) }()

	if strings.TrimSpace(query) == "" {
		return SearchResult{}, fmt.Errorf("catalogsearch: %w: empty query", ErrInvalidQuery)
	}
	var p searchParams
	for _, o := range opts {
		o(&p)
	}

	q := url.Values{}
	q.Set("q", query)
	if p.limit > 0 {
		q.Set("limit", strconv.Itoa(p.limit))
	}
	if p.threshold != nil {
		q.Set("threshold", strconv.FormatFloat(*p.threshold, 'f', -1, 64))
	}

	err = c.do(ctx, http.MethodGet, "/api/products/search", q, &res)
	return res, err
}

// Products lists the whole catalog.
func (c *Client) Products(ctx context.Context) (_ []Product, err error) {
	start := time.Now()
	defer func() { c.obs.observe("products", start, err) }()

	var out productList
	if err = c.do(ctx, http.MethodGet, "/api/products", nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// Info returns service metadata and the active search strategies.
func (c *Client) Info(ctx context.Context) (info ServiceInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("info", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/products/info", nil, &info)
	return info, err
}

// Reindex embeds the whole catalog into the vector index.
// Returns ErrIndexingInProgress when another run is active.
func (c *Client) Reindex(ctx context.Context) (report ReindexReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reindex", start, err) }()

	err = c.do(ctx, http.MethodPost, "/api/products/reindex", nil, &report)
	return report, err
}

// IndexProduct embeds a single product.
func (c *Client) IndexProduct(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("index_product", start, err) }()

	var out indexResult
	return c.do(ctx, http.MethodPost, "/api/products/"+strconv.FormatInt(id, 10)+"/index", nil, &out)
}

// Usage returns embedding token consumption.
func (c *Client) Usage(ctx context.Context) (u Usage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/usage", nil, &u)
	return u, err
}

// Health checks the health of all service components.
// An unhealthy service answers 503 with a regular report, which is
// returned without error.
func (c *Client) Health(ctx context.Context) (h HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	resp, err := c.send(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return HealthStatus{}, fmt.Errorf("catalogsearch: decode health: %w", err)
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	resp, err := c.send(ctx, method, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalogsearch: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("catalogsearch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalogsearch: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Code != "" {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
		return apiErr
	}
	apiErr.Code = strings.ReplaceAll(strings.ToLower(http.StatusText(resp.StatusCode)), " ", "_")
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

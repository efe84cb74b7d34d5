package catalogsearch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds the client-side request metrics.
type sdkMetrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	strategies *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API calls made by the client, by operation and outcome code.",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "catalogsearch",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "API call round-trip time in seconds.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Subsystem: "client",
			Name:      "search_strategy_total",
			Help:      "Searches by the strategy that answered them.",
		}, []string{"strategy"}),
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.strategies); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("catalogsearch: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("catalogsearch: register metric: %w", err)
	}
	return nil
}

// observer logs and counts API calls.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// outcomeCode labels err: "ok", the service error code, or "transport"
// when no response was received.
func outcomeCode(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	if errors.Is(err, ErrInvalidQuery) {
		return "bad_request"
	}
	return "transport"
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...slog.Attr) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	code := outcomeCode(err)

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(op, code).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	args := make([]any, 0, len(attrs)+4)
	args = append(args, slog.String("op", op), slog.Duration("duration", dur))
	for _, a := range attrs {
		args = append(args, a)
	}
	if err != nil {
		args = append(args, slog.String("code", code), slog.Any("error", err))
		o.logger.Warn("catalogsearch call failed", args...)
		return
	}
	o.logger.Debug("catalogsearch call completed", args...)
}

// observeSearch records a search together with the strategy that answered it.
func (o *observer) observeSearch(query string, start time.Time, res SearchResult, err error) {
	if o == nil {
		return
	}
	if err == nil && o.metrics != nil {
		o.metrics.strategies.WithLabelValues(res.Strategy).Inc()
	}
	o.observe("search", start, err,
		slog.String("query", query),
		slog.String("strategy", res.Strategy),
		slog.Int("results", res.Total),
	)
}

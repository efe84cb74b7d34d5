package reformulate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// HeuristicReformulator is the local fallback used when the language model is
// unavailable or fails.
type HeuristicReformulator interface {
	Reformulate(ctx context.Context, raw string) domain.QueryAttributes
}

// AvailabilityRecorder receives the outcome of every language model call.
type AvailabilityRecorder interface {
	RecordSuccess()
	RecordFailure(err error)
}

// Cached reformulates with a language model and caches every outcome,
// including heuristic fallbacks, by raw query.
type Cached struct {
	heuristic HeuristicReformulator
	inferrer  PrimaryTermInferrer
	llm       domain.Completer
	cache     Cache
	ttl       time.Duration
	now       func() time.Time
	avail     AvailabilityRecorder
	logger    *zap.Logger
}

// NewCached creates a caching reformulator. llm nil means no provider
// credential is configured and every query goes to the heuristic.
func NewCached(
	heuristic HeuristicReformulator,
	inferrer PrimaryTermInferrer,
	llm domain.Completer,
	cache Cache,
	logger *zap.Logger,
) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		heuristic: heuristic,
		inferrer:  inferrer,
		llm:       llm,
		cache:     cache,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// WithTTL sets how long cache entries stay valid.
func (c *Cached) WithTTL(ttl time.Duration) *Cached {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// WithClock replaces the time source (tests).
func (c *Cached) WithClock(now func() time.Time) *Cached {
	c.now = now
	return c
}

// WithAvailability reports language model outcomes to r.
func (c *Cached) WithAvailability(r AvailabilityRecorder) *Cached {
	c.avail = r
	return c
}

// Reformulate returns the structured attributes of raw. It never fails:
// provider and parse errors fall back to the heuristic.
func (c *Cached) Reformulate(ctx context.Context, raw string) domain.QueryAttributes {
	if strings.TrimSpace(raw) == "" {
		return domain.QueryAttributes{}
	}

	if e, ok := c.cache.Get(ctx, raw); ok && c.now().Sub(e.CreatedAt) < c.ttl {
		metrics.ReformulationTotal.WithLabelValues("cache").Inc()
		return e.Attributes
	}

	var attrs domain.QueryAttributes
	if c.llm == nil {
		attrs = c.heuristic.Reformulate(ctx, raw)
		metrics.ReformulationTotal.WithLabelValues("heuristic").Inc()
	} else {
		var err error
		attrs, err = c.reformulateWithModel(ctx, raw)
		if err != nil {
			c.logger.Warn("llm reformulation failed, using heuristic",
				zap.String("query", raw), zap.Error(err))
			if c.avail != nil {
				c.avail.RecordFailure(err)
			}
			attrs = c.heuristic.Reformulate(ctx, raw)
			metrics.ReformulationTotal.WithLabelValues("fallback").Inc()
		} else {
			if c.avail != nil {
				c.avail.RecordSuccess()
			}
			metrics.ReformulationTotal.WithLabelValues("llm").Inc()
		}
	}

	c.cache.Put(ctx, raw, Entry{Attributes: attrs, CreatedAt: c.now()})
	return attrs
}

func (c *Cached) reformulateWithModel(ctx context.Context, raw string) (domain.QueryAttributes, error) {
	reply, err := c.llm.Complete(ctx, extractionPrompt(raw))
	if err != nil {
		return domain.QueryAttributes{}, err
	}

	attrs, err := parseAttributes(reply)
	if err != nil {
		return domain.QueryAttributes{}, err
	}

	if c.inferrer != nil {
		if term := c.inferrer.Infer(ctx, raw); term != "" {
			attrs.PrimaryTerm = term
		}
	}
	return attrs.Sanitized(), nil
}

var attributeKeys = []string{"primary_term", "primaryTerm", "brand", "fraction", "size", "unit", "normalized"}

// parseAttributes reads the JSON object in reply. Text around the object is
// ignored. Numeric values are kept as their literal text.
func parseAttributes(reply string) (domain.QueryAttributes, error) {
	fields, err := decodeObject(reply)
	if err != nil {
		start := strings.Index(reply, "{")
		end := strings.LastIndex(reply, "}")
		if start < 0 || end <= start {
			return domain.QueryAttributes{}, fmt.Errorf("%w: no JSON object in reply", domain.ErrMalformedResponse)
		}
		fields, err = decodeObject(reply[start : end+1])
		if err != nil {
			return domain.QueryAttributes{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
	}

	found := false
	for _, k := range attributeKeys {
		if _, ok := fields[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return domain.QueryAttributes{}, fmt.Errorf("%w: no attribute keys in reply", domain.ErrMalformedResponse)
	}

	primary := asText(fields["primary_term"])
	if primary == "" {
		primary = asText(fields["primaryTerm"])
	}
	return domain.QueryAttributes{
		PrimaryTerm: primary,
		Brand:       asText(fields["brand"]),
		Fraction:    asText(fields["fraction"]),
		Size:        asText(fields["size"]),
		Unit:        asText(fields["unit"]),
		Normalized:  asText(fields["normalized"]),
	}, nil
}

func decodeObject(s string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("reply is not an object")
	}
	return fields, nil
}

func asText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

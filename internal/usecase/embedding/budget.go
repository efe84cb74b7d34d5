package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// BudgetAction defines behavior when the token budget is spent.
type BudgetAction string

const (
	// BudgetActionWarn logs and lets the request through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request with domain.ErrQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetLimits caps token usage. Zero means unlimited.
type BudgetLimits struct {
	Daily   int64
	Monthly int64
	Action  BudgetAction
}

// BudgetStore persists budget counters. IncrBy may be called repeatedly.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetStatus is a point-in-time view of budget usage.
type BudgetStatus struct {
	DailyUsed    int64
	DailyLimit   int64
	MonthlyUsed  int64
	MonthlyLimit int64
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (s BudgetStatus) RemainingDaily() int64 { return remaining(s.DailyLimit, s.DailyUsed) }

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (s BudgetStatus) RemainingMonthly() int64 { return remaining(s.MonthlyLimit, s.MonthlyUsed) }

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// BudgetTracker counts embedding tokens per day and month. Check is served
// from memory; Record writes behind to the optional store so counters
// survive restarts and are shared between replicas.
type BudgetTracker struct {
	mu         sync.Mutex
	status     BudgetStatus
	action     BudgetAction
	provider   string
	keyPrefix  string
	dayStart   time.Time
	monthStart time.Time
	now        func() time.Time
	store      BudgetStore
	logger     *zap.Logger
}

// NewBudgetTracker creates a tracker for provider.
func NewBudgetTracker(provider string, limits BudgetLimits, logger *zap.Logger) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.Action == "" {
		limits.Action = BudgetActionWarn
	}
	b := &BudgetTracker{
		status:   BudgetStatus{DailyLimit: limits.Daily, MonthlyLimit: limits.Monthly},
		action:   limits.Action,
		provider: provider,
		now:      time.Now,
		logger:   logger,
	}
	b.resetWindows(b.now().UTC())
	return b
}

// WithKeyPrefix namespaces store keys.
func (b *BudgetTracker) WithKeyPrefix(prefix string) *BudgetTracker {
	b.keyPrefix = prefix
	return b
}

// WithClock replaces the time source (tests).
func (b *BudgetTracker) WithClock(now func() time.Time) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.resetWindows(now().UTC())
	return b
}

// WithStore attaches persistence and loads the current counters from it.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now().UTC()
	if v, err := store.Get(ctx, b.key("daily", now)); err == nil {
		b.status.DailyUsed = v
	} else {
		b.logger.Warn("Failed to load daily budget", zap.Error(err))
	}
	if v, err := store.Get(ctx, b.key("monthly", now)); err == nil {
		b.status.MonthlyUsed = v
	} else {
		b.logger.Warn("Failed to load monthly budget", zap.Error(err))
	}
	b.logger.Info("Embedding budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.status.DailyUsed),
		zap.Int64("monthly_used", b.status.MonthlyUsed),
	)
	return b
}

func (b *BudgetTracker) key(window string, t time.Time) string {
	stamp := t.Format("2006-01-02")
	if window == "monthly" {
		stamp = t.Format("2006-01")
	}
	return fmt.Sprintf("%sbudget:%s:%s:%s", b.keyPrefix, b.provider, window, stamp)
}

// Check reports whether another request fits the budget.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	window, limit := "", int64(0)
	switch s := b.status; {
	case s.DailyLimit > 0 && s.DailyUsed >= s.DailyLimit:
		window, limit = "daily", s.DailyLimit
	case s.MonthlyLimit > 0 && s.MonthlyUsed >= s.MonthlyLimit:
		window, limit = "monthly", s.MonthlyLimit
	default:
		return nil
	}

	if b.action == BudgetActionReject {
		return fmt.Errorf("%w: %s %s token budget of %d spent", domain.ErrQuotaExceeded, b.provider, window, limit)
	}
	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.String("window", window),
		zap.Int64("daily_used", b.status.DailyUsed),
		zap.Int64("monthly_used", b.status.MonthlyUsed),
		zap.Int64("limit", limit),
	)
	return nil
}

// Record adds consumed tokens and writes them behind to the store.
func (b *BudgetTracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.rollover()
	b.status.DailyUsed += tokens
	b.status.MonthlyUsed += tokens
	store := b.store
	now := b.now().UTC()
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, window := range []string{"daily", "monthly"} {
		key := b.key(window, now)
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// Status returns current usage and limits.
func (b *BudgetTracker) Status() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.status
}

// rollover zeroes counters when the day or month changes.
func (b *BudgetTracker) rollover() {
	now := b.now().UTC()
	if day := truncateToDay(now); day.After(b.dayStart) {
		b.status.DailyUsed = 0
		b.dayStart = day
	}
	if month := truncateToMonth(now); month.After(b.monthStart) {
		b.status.MonthlyUsed = 0
		b.monthStart = month
	}
}

func (b *BudgetTracker) resetWindows(now time.Time) {
	b.dayStart = truncateToDay(now)
	b.monthStart = truncateToMonth(now)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

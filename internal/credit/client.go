// Package credit resolves company names to credit bureau reports.
//
// Reports come from configured bureau providers. The deterministic mock
// bureau answers when a provider is disabled, out of free quota or failing
// and CreditConfig.FallbackToMock is set.
package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/telemetry"
)

var (
	// ErrUnknownProvider is returned for a provider ID that is not configured.
	ErrUnknownProvider = fmt.Errorf("%w: unknown credit provider", domain.ErrInvalidInput)

	// ErrProviderDisabled is returned by a provider without an API key.
	ErrProviderDisabled = errors.New("credit provider disabled")

	// ErrQuotaExhausted is returned when a provider's free quota is used up.
	ErrQuotaExhausted = errors.New("credit provider quota exhausted")

	// ErrBureau is returned when a bureau answers with an error code.
	ErrBureau = errors.New("credit bureau error")

	// ErrInvalidReport is returned for an unreadable or out-of-range report.
	ErrInvalidReport = errors.New("invalid credit report")
)

// Provider looks up one company at one bureau.
type Provider interface {
	ID() string
	Query(ctx context.Context, companyName string) (*domain.CreditReport, error)
}

type usage struct {
	used      int64
	lastReset time.Time
}

// Client routes credit queries to providers with caching and quota tracking.
type Client struct {
	cfg       domain.CreditConfig
	cache     domain.Cache
	metrics   *telemetry.Metrics
	mock      Provider
	providers map[string]Provider
	configs   []domain.CreditProviderConfig

	mu    sync.Mutex
	usage map[string]*usage
	now   func() time.Time
}

// NewClient creates a client for the providers in cfg. cache may be nil, in
// which case reports are not cached and quotas are not enforced.
func NewClient(cfg domain.CreditConfig, cache domain.Cache, metrics *telemetry.Metrics) (*Client, error) {
	c := &Client{
		cfg:       cfg,
		cache:     cache,
		metrics:   metrics,
		mock:      NewMockProvider(),
		providers: make(map[string]Provider),
		usage:     make(map[string]*usage),
		now:       time.Now,
	}

	for _, pc := range cfg.Providers {
		p, err := NewHTTPProvider(pc, nil)
		if err != nil {
			return nil, err
		}
		c.providers[pc.ID] = p
		c.configs = append(c.configs, pc)
		c.usage[pc.ID] = &usage{lastReset: c.now().UTC()}
	}

	if cfg.DefaultProvider != "" && cfg.DefaultProvider != MockProviderID {
		if _, ok := c.providers[cfg.DefaultProvider]; !ok {
			return nil, fmt.Errorf("%w: default %q", ErrUnknownProvider, cfg.DefaultProvider)
		}
	}

	return c, nil
}

// GetCreditScore resolves companyName at provider. An empty provider uses
// the configured default.
func (c *Client) GetCreditScore(ctx context.Context, companyName, provider string) (*domain.CreditReport, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, fmt.Errorf("%w: companyName is required", domain.ErrInvalidInput)
	}
	if provider == "" {
		provider = c.cfg.DefaultProvider
	}
	if provider == "" || provider == MockProviderID {
		return c.answer(ctx, c.mock, companyName)
	}

	p, ok := c.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	if report := c.cached(ctx, provider, companyName); report != nil {
		return report, nil
	}

	report, err := c.query(ctx, p, companyName)
	if err != nil {
		if !c.cfg.FallbackToMock {
			return nil, err
		}
		slog.Warn("credit query failed, using simulated report",
			"provider", provider,
			"error", err,
		)
		return c.answer(ctx, c.mock, companyName)
	}

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if err := c.cache.SetCreditReport(ctx, domain.GlobalTenantID, provider, report, c.cfg.CacheTTL); err != nil {
			slog.Warn("failed to cache credit report", "provider", provider, "error", err)
		}
	}

	c.metrics.RecordCreditQuery(ctx, provider, false)
	return report, nil
}

func (c *Client) answer(ctx context.Context, p Provider, companyName string) (*domain.CreditReport, error) {
	report, err := p.Query(ctx, companyName)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordCreditQuery(ctx, p.ID(), report.IsMock)
	return report, nil
}

func (c *Client) cached(ctx context.Context, provider, companyName string) *domain.CreditReport {
	if c.cache == nil {
		return nil
	}
	report, err := c.cache.GetCreditReport(ctx, domain.GlobalTenantID, provider, companyName)
	if err != nil {
		slog.Warn("credit cache lookup failed", "provider", provider, "error", err)
		return nil
	}
	return report
}

// query charges one unit of free quota and calls the provider.
func (c *Client) query(ctx context.Context, p Provider, companyName string) (*domain.CreditReport, error) {
	if hp, ok := p.(*HTTPProvider); ok && !hp.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, p.ID())
	}

	used, err := c.charge(ctx, p.ID())
	if err != nil {
		return nil, err
	}
	if quota := c.quota(p.ID()); quota > 0 && used > quota {
		return nil, fmt.Errorf("%w: %s used %d of %d", ErrQuotaExhausted, p.ID(), used, quota)
	}

	return p.Query(ctx, companyName)
}

func (c *Client) charge(ctx context.Context, provider string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.usage[provider]
	if c.cache == nil {
		u.used++
		return u.used, nil
	}

	used, err := c.cache.IncrementCounter(ctx, domain.GlobalTenantID, quotaKey(provider), c.quotaWindow())
	if err != nil {
		return 0, fmt.Errorf("failed to track quota: %w", err)
	}
	if used == 1 {
		u.lastReset = c.now().UTC()
	}
	u.used = used
	return used, nil
}

func (c *Client) quota(provider string) int64 {
	for _, pc := range c.configs {
		if pc.ID == provider {
			return pc.FreeQuota
		}
	}
	return 0
}

func (c *Client) quotaWindow() time.Duration {
	if c.cfg.QuotaWindow > 0 {
		return c.cfg.QuotaWindow
	}
	return 24 * time.Hour
}

func quotaKey(provider string) string {
	return "credit-quota:" + provider
}

// Stats returns quota usage per provider in configuration order.
func (c *Client) Stats() []domain.ProviderUsage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ProviderUsage, 0, len(c.configs))
	for _, pc := range c.configs {
		u := c.usage[pc.ID]
		used := u.used
		if used > pc.FreeQuota {
			used = pc.FreeQuota
		}
		out = append(out, domain.ProviderUsage{
			ID:        pc.ID,
			Name:      pc.Name,
			Enabled:   pc.APIKey != "",
			Used:      used,
			Quota:     pc.FreeQuota,
			Remaining: pc.FreeQuota - used,
			LastReset: u.lastReset,
		})
	}
	return out
}

// Providers lists the configured providers followed by the mock bureau.
func (c *Client) Providers() []domain.ProviderUsage {
	out := c.Stats()
	return append(out, domain.ProviderUsage{
		ID:      MockProviderID,
		Name:    "模拟征信",
		Enabled: true,
	})
}

// ResetStats clears the usage of provider, or of every provider when it is empty.
func (c *Client) ResetStats(ctx context.Context, provider string) error {
	ids := make([]string, 0, len(c.configs))
	if provider == "" {
		for _, pc := range c.configs {
			ids = append(ids, pc.ID)
		}
	} else {
		if _, ok := c.providers[provider]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
		}
		ids = append(ids, provider)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if c.cache != nil {
			if err := c.cache.Delete(ctx, domain.GlobalTenantID, quotaKey(id)); err != nil {
				return fmt.Errorf("failed to reset %s: %w", id, err)
			}
		}
		c.usage[id] = &usage{lastReset: c.now().UTC()}
	}
	return nil
}

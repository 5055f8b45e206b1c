// Package cache provides the credit report and quota caches for Heron.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opensource-finance/heron/internal/domain"
)

const defaultLocalMaxSize = 10000

var errNoTenant = errors.New("tenantID is required")

// LRUCache is the Community tier cache and the L1 of TwoPhaseCache.
// Reports and quota counters are bounded separately, each to maxSize
// entries, and every entry carries its own expiry.
type LRUCache struct {
	// mu makes expiry checks and counter increments atomic with the lookup.
	mu       sync.Mutex
	maxSize  int
	entries  *lru.Cache[string, cacheEntry]
	counters *lru.Cache[string, counterEntry]
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// NewLRUCache creates a cache holding up to maxSize reports.
// Non-positive sizes default to 10000.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = defaultLocalMaxSize
	}
	// lru.New only fails for non-positive sizes.
	entries, _ := lru.New[string, cacheEntry](maxSize)
	counters, _ := lru.New[string, counterEntry](maxSize)
	return &LRUCache{
		maxSize:  maxSize,
		entries:  entries,
		counters: counters,
	}
}

// Get returns the value under key, or nil when absent or expired.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, errNoTenant
	}
	k := scoped(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(k)
	if !ok {
		return nil, nil
	}
	if time.Now().After(e.expiresAt) {
		c.entries.Remove(k)
		return nil, nil
	}
	return e.value, nil
}

// Set stores value under key for ttl, evicting the least recently used
// entry when full.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return errNoTenant
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(scoped(tenantID, key), cacheEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Delete removes a value and the counter stored under the same key.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return errNoTenant
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(scoped(tenantID, key))
	c.counters.Remove(scoped(tenantID, counterKey(key)))
	return nil
}

// GetCreditReport returns the cached bureau report for a company.
func (c *LRUCache) GetCreditReport(ctx context.Context, tenantID string, provider, companyName string) (*domain.CreditReport, error) {
	data, err := c.Get(ctx, tenantID, creditKey(provider, companyName))
	if err != nil || data == nil {
		return nil, err
	}
	return decodeReport(data)
}

// SetCreditReport caches a bureau report under its company name.
func (c *LRUCache) SetCreditReport(ctx context.Context, tenantID string, provider string, report *domain.CreditReport, ttl time.Duration) error {
	if report == nil {
		return fmt.Errorf("%w: nil credit report", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, creditKey(provider, report.CompanyName), data, ttl)
}

// IncrementCounter adds one to the counter under key. The window opens on
// the first increment and the count restarts at 1 once it has passed.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, errNoTenant
	}
	k := scoped(tenantID, counterKey(key))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.counters.Get(k)
	if !ok || now.After(e.expiresAt) {
		e = counterEntry{expiresAt: now.Add(window)}
	}
	e.count++
	c.counters.Add(k, e)
	return e.count, nil
}

// Ping always succeeds for the in-process cache.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry.
func (c *LRUCache) Close() error {
	c.entries.Purge()
	c.counters.Purge()
	return nil
}

// Stats returns the number of cached values and the capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	return c.entries.Len(), c.maxSize
}

func scoped(tenantID, key string) string {
	return tenantID + ":" + key
}

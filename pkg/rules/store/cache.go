package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/telemetry/metrics"
)

// Cache names reported in metrics.
const (
	CachePTP = "ptp"
	CacheMUE = "mue"
	CacheAOC = "aoc"
)

// CachedSource serves rule lookups from bounded, expiring LRU caches in
// front of a Store. Keys include the store generation, so a snapshot
// replaced through the same Store is never served stale; the TTL bounds
// staleness after rebuilds made by other processes.
type CachedSource struct {
	store   *Store
	metrics *metrics.Collector

	ptp *expirable.LRU[string, []edits.PTPEdit]
	mue *expirable.LRU[string, []edits.MUELimit]
	aoc *expirable.LRU[string, []edits.AOCEdit]
}

// NewCachedSource wraps store with caches of size entries each.
func NewCachedSource(store *Store, size int, ttl time.Duration, collector *metrics.Collector) *CachedSource {
	c := &CachedSource{store: store, metrics: collector}
	c.ptp = expirable.NewLRU[string, []edits.PTPEdit](size, func(string, []edits.PTPEdit) { collector.RecordCacheEviction(CachePTP) }, ttl)
	c.mue = expirable.NewLRU[string, []edits.MUELimit](size, func(string, []edits.MUELimit) { collector.RecordCacheEviction(CacheMUE) }, ttl)
	c.aoc = expirable.NewLRU[string, []edits.AOCEdit](size, func(string, []edits.AOCEdit) { collector.RecordCacheEviction(CacheAOC) }, ttl)
	return c
}

func (c *CachedSource) key(codes []string, provider edits.ProviderType, asOf string) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(c.store.Generation(), 10))
	sb.WriteByte('|')
	sb.WriteString(string(provider))
	sb.WriteByte('|')
	sb.WriteString(asOf)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(distinct(codes), ","))
	return sb.String()
}

// PTPEdits implements the validator's rule source.
func (c *CachedSource) PTPEdits(ctx context.Context, codes []string, provider edits.ProviderType, asOf string) ([]edits.PTPEdit, error) {
	return cached(c, c.ptp, CachePTP, c.key(codes, provider, asOf), func() ([]edits.PTPEdit, error) {
		return c.store.PTPEdits(ctx, codes, provider, asOf)
	})
}

// MUELimits implements the validator's rule source.
func (c *CachedSource) MUELimits(ctx context.Context, codes []string, provider edits.ProviderType, asOf string) ([]edits.MUELimit, error) {
	return cached(c, c.mue, CacheMUE, c.key(codes, provider, asOf), func() ([]edits.MUELimit, error) {
		return c.store.MUELimits(ctx, codes, provider, asOf)
	})
}

// AOCEdits implements the validator's rule source.
func (c *CachedSource) AOCEdits(ctx context.Context, codes []string, asOf string) ([]edits.AOCEdit, error) {
	return cached(c, c.aoc, CacheAOC, c.key(codes, edits.ProviderUnscoped, asOf), func() ([]edits.AOCEdit, error) {
		return c.store.AOCEdits(ctx, codes, asOf)
	})
}

// HasPTPRows is not cached; readiness must reflect the database.
func (c *CachedSource) HasPTPRows(ctx context.Context) (bool, error) {
	return c.store.HasPTPRows(ctx)
}

// Purge drops every cached entry.
func (c *CachedSource) Purge() {
	c.ptp.Purge()
	c.mue.Purge()
	c.aoc.Purge()
}

func cached[V any](c *CachedSource, lru *expirable.LRU[string, V], name, key string, load func() (V, error)) (V, error) {
	if v, ok := lru.Get(key); ok {
		c.metrics.RecordCacheHit(name)
		return v, nil
	}
	c.metrics.RecordCacheMiss(name)

	v, err := load()
	if err != nil {
		return v, err
	}
	lru.Add(key, v)
	c.metrics.UpdateCacheSize(name, lru.Len())
	return v, nil
}

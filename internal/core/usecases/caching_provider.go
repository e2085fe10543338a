package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
)

// CachingProvider remembers the latest fix of a device in the cache and
// serves it as the last-known position when the wrapped provider has none.
type CachingProvider struct {
	inner ports.PositionProvider
	cache ports.CacheService
	key   string
	ttl   int
}

// NewCachingProvider wraps inner. ttlSeconds bounds how old a cached fix may be.
func NewCachingProvider(inner ports.PositionProvider, cache ports.CacheService, device string, ttlSeconds int) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		cache: cache,
		key:   "location:last:" + device,
		ttl:   ttlSeconds,
	}
}

// LastKnown prefers the wrapped provider's fix and falls back to the cache.
func (p *CachingProvider) LastKnown(ctx context.Context) (domain.GeoPoint, bool, error) {
	pt, ok, err := p.inner.LastKnown(ctx)
	if err == nil && ok {
		return pt, true, nil
	}
	if err != nil {
		slog.Debug("last known from provider failed", "error", err)
	}

	data, cerr := p.cache.Get(ctx, p.key)
	if cerr != nil {
		metrics.CacheMisses.WithLabelValues("last_known").Inc()
		return domain.GeoPoint{}, false, err
	}
	var cached domain.GeoPoint
	if jerr := json.Unmarshal(data, &cached); jerr != nil || cached.Validate() != nil {
		metrics.CacheMisses.WithLabelValues("last_known").Inc()
		return domain.GeoPoint{}, false, nil
	}
	metrics.CacheHits.WithLabelValues("last_known").Inc()
	return cached, true, nil
}

// Subscribe forwards to the wrapped provider, storing every valid fix.
func (p *CachingProvider) Subscribe(ctx context.Context, policy domain.DeliveryPolicy, onFix func(domain.GeoPoint)) (func(), error) {
	return p.inner.Subscribe(ctx, policy, func(pt domain.GeoPoint) {
		if pt.Validate() == nil {
			p.store(pt)
		}
		onFix(pt)
	})
}

func (p *CachingProvider) store(pt domain.GeoPoint) {
	data, err := json.Marshal(pt)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := p.cache.Set(ctx, p.key, data, p.ttl); err != nil {
		slog.Debug("cache last fix failed", "error", err)
	}
}

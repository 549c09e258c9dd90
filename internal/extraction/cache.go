package extraction

import (
	"context"
	"strings"
	"time"

	"github.com/maypok86/otter"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

// CachedEnricher memoises macro estimates per normalised description.
type CachedEnricher struct {
	next  ports.EnrichmentService
	cache otter.Cache[string, domain.Macros]
}

func NewCachedEnricher(next ports.EnrichmentService, capacity int, ttl time.Duration) (*CachedEnricher, error) {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cache, err := otter.MustBuilder[string, domain.Macros](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &CachedEnricher{next: next, cache: cache}, nil
}

func (c *CachedEnricher) EstimateMacros(ctx context.Context, description string) (domain.Macros, error) {
	key := cacheKey(description)
	if macros, ok := c.cache.Get(key); ok {
		return macros, nil
	}
	macros, err := c.next.EstimateMacros(ctx, description)
	if err != nil {
		return domain.Macros{}, err
	}
	c.cache.Set(key, macros)
	return macros, nil
}

func (c *CachedEnricher) Close() {
	c.cache.Close()
}

func cacheKey(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

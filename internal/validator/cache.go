package validator

import (
	"context"
	"sync/atomic"

	"github.com/kdice/kdice/internal/kconfig"
	"github.com/puzpuzpuz/xsync/v3"
)

// Cache remembers verdicts by configuration hash. Cancelled verdicts and errors are not
// cached, the same candidate may be retried later.
type Cache struct {
	next     Validator
	verdicts *xsync.MapOf[string, Verdict]
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewCache wraps next with a verdict cache.
func NewCache(next Validator) *Cache {
	return &Cache{
		next:     next,
		verdicts: xsync.NewMapOf[string, Verdict](),
	}
}

func (cache *Cache) Validate(ctx context.Context, configText string) (Verdict, error) {
	key := kconfig.Hash(configText)

	if verdict, ok := cache.verdicts.Load(key); ok {
		cache.hits.Add(1)
		return verdict, nil
	}

	cache.misses.Add(1)

	verdict, err := cache.next.Validate(ctx, configText)
	if err != nil || verdict.Stage == StageCancelled {
		return verdict, err
	}

	cache.verdicts.Store(key, verdict)

	return verdict, nil
}

// Lookup returns the cached verdict of configText, if any.
func (cache *Cache) Lookup(configText string) (Verdict, bool) {
	return cache.verdicts.Load(kconfig.Hash(configText))
}

// Hits is the number of validations answered from the cache.
func (cache *Cache) Hits() int64 {
	return cache.hits.Load()
}

// Misses is the number of validations passed to the wrapped validator.
func (cache *Cache) Misses() int64 {
	return cache.misses.Load()
}

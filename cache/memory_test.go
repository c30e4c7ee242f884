package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/cache/cachetest"
)

func TestMemoryCache_Contract(t *testing.T) {
	cachetest.Run(t, func(*testing.T) cache.Cache { return cache.NewMemoryCache() })
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("menucache.m%d.k", i%5)
			_ = c.Set(ctx, key, []byte("v"), cache.Forever)
			_, _, _ = c.Get(ctx, key)
			if i%7 == 0 {
				_, _ = c.DeletePrefix(ctx, "menucache.m1.")
			}
		}(i)
	}
	wg.Wait()
}

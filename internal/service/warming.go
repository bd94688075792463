package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CurrentFetcher is the slice of WeatherService the warmer needs.
type CurrentFetcher interface {
	CurrentByCity(ctx context.Context, city string) (string, error)
}

// CacheWarmer prefetches current-conditions reports for a list of cities so
// the first caller to ask for a warmed city gets a cache hit.
type CacheWarmer struct {
	fetcher CurrentFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer. logger may be nil.
func NewCacheWarmer(fetcher CurrentFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches current conditions for each city concurrently, populating the
// cache via the normal dispatch path. Returns an aggregated error if any city
// failed; successes still land in the cache.
func (w *CacheWarmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("cities", len(cities)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(cities))
	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			if _, err := w.fetcher.CurrentByCity(ctx, city); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
			}
		}(city)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	w.logger.Info("cache warming complete",
		zap.Int("cities", len(cities)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

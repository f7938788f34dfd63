package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
)

// ReportFetcher is implemented by the service layer. Used by Warmer to avoid
// a circular dependency on the service package.
type ReportFetcher interface {
	GetReport(ctx context.Context, r models.DateRange) (models.Report, error)
}

// Warmer prefetches reports for commonly requested ranges so the first
// dashboard view after a reload is served from cache.
type Warmer struct {
	fetcher ReportFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher ReportFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// DefaultRanges returns the full dataset range and one range per year.
func DefaultRanges() []models.DateRange {
	ranges := []models.DateRange{models.FullRange()}
	for y := models.MinDate.Year(); y <= models.MaxDate.Year(); y++ {
		ranges = append(ranges, models.DateRange{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		})
	}
	return ranges
}

// Warm fetches a report for each range concurrently. The fetcher populates
// the cache. Returns the joined errors of failed ranges.
func (w *Warmer) Warm(ctx context.Context, ranges []models.DateRange) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming report cache", zap.Int("ranges", len(ranges)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(ranges))
	for _, r := range ranges {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.GetReport(ctx, r); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", r.Key(), err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("report cache warming complete",
			zap.Int("ranges", len(ranges)),
			zap.Int("errors", len(errs)),
			zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

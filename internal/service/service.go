package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/cache"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/dataset"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/models"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/report"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/traffic"
)

// Snapshots provides the current dataset snapshot. Implemented by dataset.Store.
type Snapshots interface {
	Current() (*dataset.Dataset, error)
}

// DashboardService produces reports for date ranges from the current dataset
// snapshot. With a cache configured it uses cache-aside keyed by dataset version
// and range, and coalesces concurrent identical misses.
type DashboardService struct {
	store     Snapshots
	cache     cache.Cache // nil disables caching
	ttl       time.Duration
	coalescer *requestCoalescer
}

// NewDashboardService creates a DashboardService. Pass a nil cache to recompute
// every report. timeout bounds a coalesced generation.
func NewDashboardService(store Snapshots, c cache.Cache, ttl, timeout time.Duration) *DashboardService {
	s := &DashboardService{store: store, cache: c, ttl: ttl}
	if c != nil && timeout > 0 {
		s.coalescer = newRequestCoalescer(timeout)
	}
	return s
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetReport returns the report for r. report.ErrNoData is returned when the
// range selects no records and dataset.ErrNotLoaded before the first load.
func (s *DashboardService) GetReport(ctx context.Context, r models.DateRange) (models.Report, error) {
	start := time.Now()
	logger := loggerFromContext(ctx)

	ds, err := s.store.Current()
	if err != nil {
		observability.RecordReport("unavailable", time.Since(start))
		return models.Report{}, err
	}

	if s.cache == nil {
		rep, err := s.generate(ctx, ds, r)
		s.record(logger, r, rep, err, false, start)
		return rep, err
	}

	key := cache.Key(ds.Version, r)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.String("reason", categorizeCacheError(err)), zap.Error(err))
		}
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("report").Inc()
		s.record(logger, r, cached, nil, true, start)
		return cached, nil
	}

	fill := func(ctx context.Context) (models.Report, error) {
		rep, err := s.generate(ctx, ds, r)
		if err != nil {
			return rep, err
		}
		if setErr := s.cache.Set(ctx, key, rep, s.ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			if logger != nil {
				logger.Warn("cache set failed", zap.String("key", key), zap.String("reason", categorizeCacheError(setErr)), zap.Error(setErr))
			}
		}
		return rep, nil
	}
	var rep models.Report
	if s.coalescer != nil {
		var shared bool
		rep, shared, err = s.coalescer.GetOrDo(ctx, key, fill)
		if shared && logger != nil {
			logger.Debug("report request coalesced", zap.String("key", key))
		}
	} else {
		rep, err = fill(ctx)
	}
	s.record(logger, r, rep, err, false, start)
	return rep, err
}

func (s *DashboardService) generate(ctx context.Context, ds *dataset.Dataset, r models.DateRange) (models.Report, error) {
	rep, err := report.Generate(ctx, ds.Records, r)
	if err != nil {
		if errors.Is(err, report.ErrNoData) {
			return models.Report{}, err
		}
		return models.Report{}, fmt.Errorf("generate report %s: %w", r.Key(), err)
	}
	rep.Version = ds.Version
	return rep, nil
}

// record updates metrics and the traffic window used by health. No-data is a
// valid answer, not a failure.
func (s *DashboardService) record(logger *zap.Logger, r models.DateRange, rep models.Report, err error, cached bool, start time.Time) {
	d := time.Since(start)
	outcome := "success"
	switch {
	case errors.Is(err, report.ErrNoData):
		outcome = "no_data"
		traffic.RecordSuccess()
	case err != nil:
		outcome = "error"
		traffic.RecordFailure()
	case cached:
		outcome = "cached"
		traffic.RecordSuccess()
	default:
		traffic.RecordSuccess()
	}
	observability.RecordReport(outcome, d)
	if logger != nil {
		logger.Debug("report served",
			zap.String("range", r.Key()),
			zap.String("outcome", outcome),
			zap.Int("records", rep.Summary.Records),
			zap.Duration("duration", d))
	}
}

// categorizeCacheError returns a stable label for cache error logs (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

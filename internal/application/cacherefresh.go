package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Cached summary kinds, the last segment of the cache key.
const (
	kindOverview   = "overview"
	kindStability  = "stability"
	kindDailyBuild = "dailyBuild"
)

// CacheRefreshService invalidates cached summaries after a sync. Refreshing
// is delete-then-recompute: the entry is deleted first and recomputed only
// when the delete actually removed something, so a key nobody ever read is
// never computed eagerly. A concurrent writer racing the recompute at worst
// duplicates a pure computation.
type CacheRefreshService struct {
	cache       driven.Cache
	overview    *OverviewService
	logger      *slog.Logger
	environment string
}

func NewCacheRefreshService(cache driven.Cache, overview *OverviewService,
	logger *slog.Logger, environment string) *CacheRefreshService {
	return &CacheRefreshService{
		cache:       cache,
		overview:    overview,
		logger:      logger,
		environment: environment,
	}
}

func (s *CacheRefreshService) key(project, branch, kind string) string {
	return fmt.Sprintf("%s-%s-%s-%s", s.environment, project, branch, kind)
}

// RefreshOverviewCounts refreshes the cached merge-gate overview summary.
func (s *CacheRefreshService) RefreshOverviewCounts(ctx context.Context, project, branch, start, end string) error {
	return s.refresh(ctx, s.key(project, branch, kindOverview), func() (any, error) {
		return s.overview.ComputeOverviewSummary(ctx, project, branch, start, end, SummaryGate)
	})
}

// RefreshStabilityCounts refreshes the cached stability breakdown.
func (s *CacheRefreshService) RefreshStabilityCounts(ctx context.Context, project, branch, start, end string) error {
	return s.refresh(ctx, s.key(project, branch, kindStability), func() (any, error) {
		return s.overview.StabilityBreakdown(ctx, project, branch, start, end)
	})
}

// RefreshDailyBuildCounts refreshes the cached daily success-rate series.
func (s *CacheRefreshService) RefreshDailyBuildCounts(ctx context.Context, project, branch, start, end string) error {
	return s.refresh(ctx, s.key(project, branch, kindDailyBuild), func() (any, error) {
		return s.overview.DailySuccessRate(ctx, project, branch, start, end)
	})
}

func (s *CacheRefreshService) refresh(ctx context.Context, key string, compute func() (any, error)) error {
	removed, err := s.cache.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("invalidating %s: %w", key, err)
	}
	if !removed {
		// Nothing was cached, so nobody is reading this key yet. The next
		// reader computes it on demand.
		return nil
	}

	value, err := compute()
	if err != nil {
		return fmt.Errorf("recomputing %s: %w", key, err)
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	s.logger.Debug("cache entry refreshed", "key", key)
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	memcacheadapter "github.com/gateboard/gateboard/internal/adapter/driven/memcache"
	regionadapter "github.com/gateboard/gateboard/internal/adapter/driven/region"
	sqliteadapter "github.com/gateboard/gateboard/internal/adapter/driven/sqlite"
	"github.com/gateboard/gateboard/internal/application"
	"github.com/gateboard/gateboard/internal/config"
	"github.com/gateboard/gateboard/internal/timeutil"
)

// summaryWindowDays is how far back the cached dashboard summaries reach.
const summaryWindowDays = 30

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"environment", cfg.Environment,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"sync_workers", cfg.SyncWorkers,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	eventRepo := sqliteadapter.NewEventRepo(db)
	buildRepo := sqliteadapter.NewBuildRepo(db)
	pipelineRepo := sqliteadapter.NewPipelineRepo(db)
	paramRepo := sqliteadapter.NewParamRepo(db)
	summaryCache := memcacheadapter.New()

	overviewSvc := application.NewOverviewService(eventRepo, buildRepo, pipelineRepo, paramRepo, slog.Default())
	refreshSvc := application.NewCacheRefreshService(summaryCache, overviewSvc, slog.Default(), cfg.Environment)

	// 6. Gate resolution only runs against live region endpoints.
	if !cfg.HasRegionEndpoints() {
		slog.Info("no region endpoints configured, sync disabled")
		<-ctx.Done()
		return nil
	}
	blueClient := regionadapter.NewBlueClient(cfg.BlueBaseURL)
	yellowClient := regionadapter.NewYellowClient(cfg.YellowBaseURL)

	resolutionSvc := application.NewResolutionService(
		eventRepo, blueClient, yellowClient, paramRepo, slog.Default(),
		cfg.ExcludedRepoURL, cfg.SpecialProject, cfg.SpecialRepoURL,
	)
	syncSvc := application.NewSyncService(pipelineRepo, buildRepo, resolutionSvc, slog.Default(), cfg.SyncWorkers)

	// 7. Periodic sync loop: convert yesterday's runs, then invalidate the
	// summaries the new records belong to.
	runSync := func() {
		outcomes, err := syncSvc.SyncComponentBuilds(ctx)
		if err != nil {
			slog.Error("build sync failed", "error", err)
			return
		}
		var synced, skipped, failed int
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				failed++
			case o.Skipped:
				skipped++
			default:
				synced++
			}
		}
		slog.Info("build sync complete", "synced", synced, "skipped", skipped, "failed", failed)

		refreshSummaries(ctx, buildRepo, refreshSvc)
	}

	slog.Info("sync loop started", "interval", cfg.SyncInterval)
	runSync()
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-ticker.C:
			runSync()
		}
	}
}

// refreshSummaries invalidates the cached summaries of every project/branch
// the recent syncs touched. Refresh failures are logged and skipped; the
// next sync cycle retries.
func refreshSummaries(ctx context.Context, buildRepo *sqliteadapter.BuildRepo, refreshSvc *application.CacheRefreshService) {
	now := time.Now()
	end := timeutil.FormatLinked(now)
	start := timeutil.FormatLinked(now.AddDate(0, 0, -summaryWindowDays))

	pairs, err := buildRepo.ProjectBranches(ctx, start, end)
	if err != nil {
		slog.Error("listing project branches for refresh", "error", err)
		return
	}
	for _, pb := range pairs {
		for name, refresh := range map[string]func(context.Context, string, string, string, string) error{
			"overview":   refreshSvc.RefreshOverviewCounts,
			"stability":  refreshSvc.RefreshStabilityCounts,
			"dailyBuild": refreshSvc.RefreshDailyBuildCounts,
		} {
			if err := refresh(ctx, pb.Project, pb.Branch, start, end); err != nil {
				slog.Warn("summary refresh failed",
					"kind", name, "project", pb.Project, "branch", pb.Branch, "error", err)
			}
		}
	}
}

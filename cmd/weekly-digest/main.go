package main

import (
	"context"
	"os"
	"time"

	"weekspend/internal/cache"
	"weekspend/internal/cli"
	"weekspend/internal/insights"
	"weekspend/internal/log"
	"weekspend/internal/services"
	"weekspend/internal/week"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentDigest)

	logger.Info("Starting weekly-digest")

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()
	store := cli.OpenBackend(startCtx, logger, cfg)

	calendar := week.NewCalendar(time.Now, loc)
	profiles := services.NewProfileService(store.Store, logger)
	weeks := services.NewWeekService(store.Store, profiles, insights.NewEngine(insights.DefaultThresholds()), calendar,
		cache.NewLRUCache[*services.WeekReport](cfg.ReportCacheSize, cfg.ReportCacheTTL), logger)
	digests := services.NewDigestService(store.Store, store.Store, weeks, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := store.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	run := func(now time.Time) {
		res, err := digests.Run(ctx, now)
		if err != nil {
			logger.Error("Digest run finished with errors", log.FieldError, err,
				log.FieldWeekStart, week.ISODate(res.WeekStart), "failed", res.Failed)
		}
		logger.Info("Digest run complete",
			log.FieldWeekStart, week.ISODate(res.WeekStart),
			"users", res.Users,
			"created", res.Created,
			"skipped", res.Skipped,
			"next_run", now.Add(cfg.DigestInterval).Format("15:04:05"))
	}

	logger.Info("Digest processor configured", "interval", cfg.DigestInterval, "backend", cfg.DataBackend)
	run(time.Now())

	ticker := time.NewTicker(cfg.DigestInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				run(now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Weekly-digest shutdown complete")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"weekspend/internal/amqp"
	"weekspend/internal/cache"
	"weekspend/internal/categories"
	"weekspend/internal/cli"
	apphttp "weekspend/internal/http"
	"weekspend/internal/insights"
	"weekspend/internal/log"
	"weekspend/internal/services"
	"weekspend/internal/week"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}
	calendar := week.NewCalendar(time.Now, loc)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store := cli.OpenBackend(startCtx, logger, cfg)

	rules := categories.DefaultRules()
	if cfg.CategoryRulesFile != "" {
		if rules, err = categories.LoadRules(cfg.CategoryRulesFile); err != nil {
			logger.Error("Failed to load category rules", log.FieldError, err, "path", cfg.CategoryRulesFile)
			os.Exit(1)
		}
		logger.Info("Loaded category rules", "path", cfg.CategoryRulesFile, "categories", len(rules))
	}

	reportCache := cache.NewLRUCache[*services.WeekReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(time.Minute)

	profiles := services.NewProfileService(store.Store, logger)
	weeks := services.NewWeekService(store.Store, profiles, insights.NewEngine(insights.DefaultThresholds()), calendar, reportCache, logger)
	profiles.SetInvalidator(weeks)

	expenseOpts := []services.ExpenseOption{services.WithInvalidator(weeks)}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, exports will be picked up by the worker sweep", log.FieldError, err)
			amqpClient = nil
		} else {
			expenseOpts = append(expenseOpts, services.WithPublisher(amqpClient))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - expenses will only be stored locally")
	}
	startCancel()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Expenses:   services.NewExpenseService(store.Store, calendar, logger, expenseOpts...),
		Weeks:      weeks,
		Categories: services.NewCategoryService(store.Store, categories.NewClassifier(rules), logger),
		Profiles:   profiles,
		Auth:       services.NewAuthService(store.Store, store.Store, cfg.SessionTTL, logger),
		Digests:    services.NewDigestService(store.Store, store.Store, weeks, logger),
	}, apphttp.Options{
		AllowedOrigins:     cfg.AllowedOrigins(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.SecureCookies,
		TrustedProxies:     cfg.TrustedProxyList(),
		Pinger:             store.Store,
	}, logger)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting weekspend server", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

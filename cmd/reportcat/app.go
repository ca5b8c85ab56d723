package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/internal/report"
	"github.com/noah-isme/reportcat/internal/report/builtin"
	"github.com/noah-isme/reportcat/internal/repository"
	"github.com/noah-isme/reportcat/internal/service"
	"github.com/noah-isme/reportcat/pkg/cache"
	"github.com/noah-isme/reportcat/pkg/config"
	"github.com/noah-isme/reportcat/pkg/database"
	"github.com/noah-isme/reportcat/pkg/sqlguard"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *sqlx.DB
	registry  *report.Registry
	metrics   *service.MetricsService
	cacheRepo *repository.CacheRepository
	reports   *service.ReportService
}

func newRegistry(cfg *config.Config) (*report.Registry, error) {
	return builtin.NewRegistry(builtin.Config{
		Driver:      cfg.Database.Driver,
		EventsTable: cfg.Reports.EventsTable,
		UsersTable:  cfg.Reports.UsersTable,
	})
}

// newApp wires the report engine. Without a database only SQL compilation
// works, which is all the sql command needs.
func newApp(cfg *config.Config, logr *zap.Logger, withDB bool) (*app, error) {
	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("build report registry: %w", err)
	}
	a := &app{cfg: cfg, logger: logr, registry: registry, metrics: service.NewMetricsService()}

	var store report.Store
	if withDB {
		a.db, err = database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		store = repository.NewQueryStore(a.db, a.metrics)
	}

	var guard *sqlguard.Guard
	if cfg.Reports.GuardSQL {
		guard = sqlguard.New()
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("report cache unavailable", zap.Error(err))
	}
	a.cacheRepo = repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(a.cacheRepo, a.metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisClient != nil)

	a.reports = service.NewReportService(registry, store, guard, cacheSvc, a.metrics, logr, service.ReportServiceConfig{
		QueryTimeout: cfg.Reports.QueryTimeout,
		CacheTTL:     cfg.Reports.CacheTTL,
	})
	return a, nil
}

func (a *app) Close() {
	if a.cacheRepo != nil {
		if err := a.cacheRepo.Close(); err != nil {
			a.logger.Warn("close cache", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
}

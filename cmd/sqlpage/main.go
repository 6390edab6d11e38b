// Command sqlpage serves a directory of .sql files as a web application:
// each request maps to a file, the file's statements run against the
// configured database, and the result rows drive a streaming HTML renderer.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/bitechdev/ResolveSpec/pkg/cache"
	"github.com/bitechdev/ResolveSpec/pkg/config"
	"github.com/bitechdev/ResolveSpec/pkg/dbmanager"
	"github.com/bitechdev/ResolveSpec/pkg/errortracking"
	"github.com/bitechdev/ResolveSpec/pkg/eventbroker"
	"github.com/bitechdev/ResolveSpec/pkg/logger"
	"github.com/bitechdev/ResolveSpec/pkg/metrics"
	"github.com/bitechdev/ResolveSpec/pkg/middleware"
	"github.com/bitechdev/ResolveSpec/pkg/server"
	"github.com/bitechdev/ResolveSpec/pkg/server/staticweb"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/analyzer"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/coordinator"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/dbexec"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/functions"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/liveview"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/migrate"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/render"
	"github.com/bitechdev/ResolveSpec/pkg/tracing"

	"golang.org/x/time/rate"

	"github.com/gorilla/mux"
)

func main() {
	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg, err := cfgMgr.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logger.Dev)
	if cfg.Logger.Path != "" {
		logger.UpdateLoggerPath(cfg.Logger.Path, cfg.Logger.Dev)
	}
	logger.Info("sqlpage server starting on %s, serving %s", cfg.Server.Addr, cfg.SQLPage.WebRoot)

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "sqlpage",
		ServiceVersion: "dev",
		Endpoint:       cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Error("init tracer: %v", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	var metricsProvider metrics.Provider = &metrics.NoOpProvider{}
	if cfg.Metrics.Enabled {
		metricsCfg := &metrics.Config{Provider: cfg.Metrics.Provider, Namespace: cfg.Metrics.Namespace}
		metricsCfg.ApplyDefaults()
		metricsProvider = metrics.NewPrometheusProvider(metricsCfg)
	}
	metrics.SetProvider(metricsProvider)

	errTracker, err := errortracking.NewProviderFromConfig(cfg.ErrorTracking)
	if err != nil {
		logger.Error("init error tracking: %v", err)
		os.Exit(1)
	}
	defer errTracker.Close()

	if cfg.EventBroker.Enabled {
		if err := eventbroker.Initialize(cfg.EventBroker); err != nil {
			logger.Error("init event broker: %v", err)
			os.Exit(1)
		}
	}

	functions.Configure(functions.Config{
		AllowExec:    cfg.SQLPage.AllowExec,
		WebRoot:      cfg.SQLPage.WebRoot,
		Version:      "sqlpage-go/dev",
		FetchLimiter: rate.NewLimiter(rate.Limit(cfg.SQLPage.FetchRatePerSecond), cfg.SQLPage.FetchBurst),
	})

	ctx := context.Background()
	dbMgr, err := dbmanager.NewManager(dbmanager.FromConfig(cfg.DBManager))
	if err != nil {
		logger.Error("create database manager: %v", err)
		os.Exit(1)
	}
	if err := dbMgr.Connect(ctx); err != nil {
		logger.Error("connect databases: %v", err)
		os.Exit(1)
	}
	defer dbMgr.Close()

	conn, err := dbMgr.GetDefault()
	if err != nil {
		logger.Error("get default connection: %v", err)
		os.Exit(1)
	}

	if cfg.SQLPage.MigrationsDirectory != "" {
		if err := migrate.Run(ctx, conn, cfg.SQLPage.MigrationsDirectory); err != nil {
			logger.Error("run migrations: %v", err)
			os.Exit(1)
		}
	}

	engine := dbexec.NewEngine(conn, cfg.SQLPage.OnConnectSQL)

	tmpl, err := render.NewTemplateSet(cfg.SQLPage.ConfigDirectory)
	if err != nil {
		logger.Error("compile component templates: %v", err)
		os.Exit(1)
	}

	afCache := analyzer.NewCache()
	var hub *liveview.Hub
	if cfg.SQLPage.LiveReload {
		hub = liveview.NewHub()
		afCache.OnInvalidate = hub.Notify
	}
	if distributed, err := newDistributedCacheProvider(cfg.Cache); err != nil {
		logger.Error("init distributed cache: %v", err)
		os.Exit(1)
	} else if distributed != nil {
		afCache.Distributed = distributed
	}

	coord := coordinator.New(coordinator.Config{
		WebRoot:             cfg.SQLPage.WebRoot,
		MaxUploadedFileSize: cfg.SQLPage.MaxUploadedFileSize,
	}, engine, afCache, tmpl)
	coord.SetErrorTracker(errTracker)

	assetsProvider, err := staticweb.LocalProvider(cfg.SQLPage.WebRoot)
	if err != nil {
		logger.Error("open web root %s: %v", cfg.SQLPage.WebRoot, err)
		os.Exit(1)
	}
	staticSvc := staticweb.NewService(staticweb.DefaultServiceConfig())
	if err := staticSvc.Mount(staticweb.MountConfig{
		URLPrefix:   "/assets",
		Provider:    assetsProvider,
		CachePolicy: staticweb.SimpleCache(3600),
	}); err != nil {
		logger.Error("mount static assets: %v", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	if hub != nil {
		router.Path("/.sqlpage/livereload").Handler(hub)
	}
	if cfg.Metrics.Enabled {
		if p, ok := metricsProvider.(*metrics.PrometheusProvider); ok {
			router.Path("/metrics").Handler(p.Handler())
		}
	}
	router.PathPrefix("/assets/").Handler(staticSvc.Handler())
	router.PathPrefix("/").Handler(coord)

	router.Use(middleware.PanicRecovery)
	router.Use(tracing.Middleware)
	if cfg.Metrics.Enabled {
		if p, ok := metricsProvider.(*metrics.PrometheusProvider); ok {
			router.Use(p.Middleware)
		}
	}
	rateLimiter := middleware.NewRateLimiter(cfg.Middleware.RateLimitRPS, cfg.Middleware.RateLimitBurst)
	router.Use(rateLimiter.Middleware)
	sizeLimiter := middleware.NewRequestSizeLimiter(cfg.Middleware.MaxRequestSize)
	router.Use(sizeLimiter.Middleware)

	host, portStr, err := net.SplitHostPort(cfg.Server.Addr)
	if err != nil {
		logger.Error("parse server address %s: %v", cfg.Server.Addr, err)
		os.Exit(1)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("parse server port %s: %v", portStr, err)
		os.Exit(1)
	}

	mgr := server.NewManager()
	if _, err := mgr.Add(server.Config{
		Name:            "sqlpage",
		Host:            host,
		Port:            port,
		Handler:         router,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DrainTimeout:    cfg.Server.DrainTimeout,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
	}); err != nil {
		logger.Error("add server: %v", err)
		os.Exit(1)
	}

	if err := mgr.ServeWithGracefulShutdown(); err != nil {
		logger.Error("server stopped with error: %v", err)
		os.Exit(1)
	}
}

// newDistributedCacheProvider builds the analyzed-file cache's cross-instance
// invalidation backing from CacheConfig. A "memory" (or empty) provider gives
// nothing beyond what each instance already holds locally, so only redis and
// memcache are wired here.
func newDistributedCacheProvider(cfg config.CacheConfig) (cache.Provider, error) {
	switch cfg.Provider {
	case "redis":
		return cache.NewRedisProvider(&cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "memcache":
		return cache.NewMemcacheProvider(&cache.MemcacheConfig{
			Servers:      cfg.Memcache.Servers,
			MaxIdleConns: cfg.Memcache.MaxIdleConns,
			Timeout:      cfg.Memcache.Timeout,
		})
	default:
		return nil, nil
	}
}

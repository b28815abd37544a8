package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openmaplab/ogc-layer-gateway/internal/capcache"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/config"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/executor"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/httpclient"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/observability"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/ogc"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/router"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/server"
	"github.com/openmaplab/ogc-layer-gateway/internal/invalidation/kafkaconsumer"
	"github.com/openmaplab/ogc-layer-gateway/internal/logger"
	"github.com/openmaplab/ogc-layer-gateway/internal/session"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	configFlag := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		// logger is not up yet
		log.Printf("config: %v", err)
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "gateway",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting gateway",
		"addr", cfg.Addr,
		"version", Version,
		"cache_driver", cfg.CacheDriver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cache      capcache.Store
		readyCheck func() error
	)
	switch cfg.CacheDriver {
	case "redis":
		rc, err := capcache.NewRedis(ctx, cfg.RedisAddr,
			capcache.WithDialTimeout(cfg.CacheOpTimeout),
			capcache.WithReadTimeout(cfg.CacheOpTimeout),
			capcache.WithWriteTimeout(cfg.CacheOpTimeout),
		)
		if err != nil {
			appLog.Error("redis cache setup failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		cache = rc
		readyCheck = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rc.Ping(pingCtx)
		}
	default:
		cache = capcache.NewMemory(cfg.MemCacheSize, cfg.CapabilityTTL)
	}
	defer func() { _ = cache.Close() }()

	exec := executor.New(appLog, httpclient.NewUpstream(cfg.UpstreamTimeout), cache, cfg.CapabilityTTL, cfg.MaxDocBytes)
	sessions := session.NewManager(cfg.MaxSessions, cfg.SessionTTL, appLog)
	builder := ogc.NewBuilder(nil)
	renderer := session.NewLogRenderer(appLog)

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(
			kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			appLog, cache)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer exited", "err", err)
			}
		}()
	}

	handlers := router.New(appLog, cfg, sessions, exec, builder, renderer)

	if err := server.Run(ctx, cfg, appLog, handlers, readyCheck); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

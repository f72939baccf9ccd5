package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	recipecache "github.com/fieldmarcel/recipe-cache"
	"github.com/fieldmarcel/recipe-cache/cache"
	"github.com/fieldmarcel/recipe-cache/config"
	"github.com/fieldmarcel/recipe-cache/internal/httpapi"
	"github.com/fieldmarcel/recipe-cache/internal/recipes"
	"github.com/fieldmarcel/recipe-cache/internal/recipes/memrepo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

var (
	// CLI flags
	configFlag         string
	portFlag           int
	providerFlag       string
	redisURLFlag       string
	dbFilenameFlag     string
	ttlFlag            time.Duration
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set at build time
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "", "YAML config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", config.ProviderMemory, "Cache provider: redis, sqlite or memory")
	flag.StringVar(&redisURLFlag, "redis-url", "", "Redis URL (redis provider)")
	flag.StringVar(&dbFilenameFlag, "db", "cache.db", "Cache DB file name (sqlite provider, use 'memory' for in-memory db)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "Lifetime of cached responses")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg.Log)

	store, err := openStore(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Cache.Provider).Msg("Cannot open cache store")
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	if err := store.Ping(pingCtx); err != nil {
		// reads fail open, so the API can run without its cache
		log.Warn().Err(err).Msg("Cache store unreachable at startup")
	}
	cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cacheConfig := recipecache.Config{
		Store:        store,
		TTL:          cfg.Cache.TTL,
		ReadTimeout:  cfg.Cache.ReadTimeout,
		WriteTimeout: cfg.Cache.WriteTimeout,
		Name:         cfg.Cache.Name,
		Logger:       &log.Logger,
		Metrics:      recipecache.NewMetrics(registry),
	}
	interceptor := recipecache.New(cacheConfig)
	svc := recipes.NewService(memrepo.NewRepo(), recipecache.NewRegistry(cacheConfig))

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: httpapi.NewRouter(httpapi.Deps{
			Service:  svc,
			Cache:    interceptor,
			Store:    store,
			Logger:   log.Logger,
			Gatherer: registry,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Listening on port %d with %s cache (ttl %s)", cfg.Port, cfg.Cache.Provider, cfg.Cache.TTL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}
	// pending cache writes still need the store, handlers that outlived
	// srv.Shutdown stop scheduling new ones
	interceptor.Shutdown()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Cache store close")
	}
}

// loadConfig reads the config file, then applies explicitly set flags,
// then the environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = portFlag
		case "provider":
			cfg.Cache.Provider = providerFlag
		case "redis-url":
			cfg.Cache.RedisURL = redisURLFlag
		case "db":
			cfg.Cache.SQLiteFile = dbFilenameFlag
		case "ttl":
			cfg.Cache.TTL = ttlFlag
		case "vv":
			cfg.Log.Trace = verbosityTraceFlag
		case "log-file":
			cfg.Log.File = logFilenameFlag
		}
	})
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg config.LogConfig) {
	// set log level
	logLevel := zerolog.DebugLevel
	if cfg.Trace {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if cfg.File != "" {
		if logFileOutput, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Timestamp().Str("version", version).Logger()
}

func openStore(cfg config.CacheConfig) (cache.Store, error) {
	var (
		store cache.Store
		err   error
	)
	switch cfg.Provider {
	case config.ProviderRedis:
		store, err = cache.NewRedisStore(cache.RedisConfig{
			URL:          cfg.RedisURL,
			KeyPrefix:    cfg.KeyPrefix,
			DialTimeout:  time.Second,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	case config.ProviderSQLite:
		filename := cfg.SQLiteFile
		if filename == "memory" {
			filename = ""
		}
		store, err = cache.NewSQLiteStore(filename)
	default:
		store = cache.NewMemStore()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Breaker.Disabled {
		return store, nil
	}
	breaker := cache.DefaultBreakerConfig(cfg.Provider)
	breaker.ConsecutiveFailures = cfg.Breaker.ConsecutiveFailures
	if cfg.Breaker.OpenTimeout > 0 {
		breaker.Timeout = cfg.Breaker.OpenTimeout
	}
	return cache.NewBreakerStore(store, breaker, log.Logger.With().Str("component", "breaker").Logger()), nil
}

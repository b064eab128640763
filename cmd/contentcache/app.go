package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/config"
	"github.com/oriys/contentcache/internal/content"
	"github.com/oriys/contentcache/internal/logging"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/oriys/contentcache/internal/observability"
	"github.com/oriys/contentcache/internal/store"
	"github.com/redis/go-redis/v9"
)

// app holds the wired cache tier for one command invocation.
type app struct {
	cfg        *config.Config
	store      *store.PostgresStore
	cache      redis.UniversalClient
	persistent *cache.Persistent
	service    *content.Service
	closers    []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Daemon.LogLevel = logLevel
	}
	logging.Init(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel)
	return cfg, nil
}

// newApp loads configuration and connects every backend. The caller must
// call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := observability.Init(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	metrics.InitPrometheus("contentcache", nil)

	a := &app{cfg: cfg}
	a.closers = append(a.closers, func() error { return observability.Shutdown(context.Background()) })

	st, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.Postgres.ReplicaDSNs...)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	cacheClient := newCacheClient(cfg.Redis)
	a.closers = append(a.closers, cacheClient.Close)
	primary, replica := newPersistentClients(cfg.Redis)
	a.closers = append(a.closers, primary.Close)

	opts := []cache.Option{
		cache.WithLogger(logging.Op()),
		cache.WithSingleFlight(cfg.Cache.SingleFlight),
		cache.WithUpdateGuard(cfg.Cache.UpdateGuard),
	}
	if replica != nil {
		a.closers = append(a.closers, replica.Close)
	}
	a.cache = cacheClient
	a.persistent = cache.NewPersistent(primary, replica, nil, opts...)

	a.service = content.NewService(st, cacheClient, a.persistent, content.Options{
		PhotoDomain:  cfg.Cache.PhotoDomain,
		DefaultPhoto: cfg.Cache.DefaultPhoto,
	}, opts...)
	return a, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newCacheClient returns a cluster client for several addresses and a plain
// client for one; go-redis picks by address count.
func newCacheClient(rc config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       rc.CacheAddrs,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
		ReadTimeout: rc.ReadTimeout,
	})
}

// newPersistentClients returns the counter primary and its read replica.
// With a sentinel master name both resolve through sentinel; the replica
// client reads from replicas only. replica is nil when none is configured.
func newPersistentClients(rc config.RedisConfig) (primary, replica redis.UniversalClient) {
	if rc.MasterName != "" {
		base := redis.FailoverOptions{
			MasterName:    rc.MasterName,
			SentinelAddrs: rc.SentinelAddrs,
			Password:      rc.Password,
			DB:            rc.DB,
			DialTimeout:   rc.DialTimeout,
			ReadTimeout:   rc.ReadTimeout,
		}
		replicaOpts := base
		replicaOpts.ReplicaOnly = true
		return redis.NewFailoverClient(&base), redis.NewFailoverClient(&replicaOpts)
	}

	primary = redis.NewClient(&redis.Options{
		Addr:        rc.PrimaryAddr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
		ReadTimeout: rc.ReadTimeout,
	})
	if rc.ReplicaAddr == "" {
		return primary, nil
	}
	return primary, redis.NewClient(&redis.Options{
		Addr:        rc.ReplicaAddr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
		ReadTimeout: rc.ReadTimeout,
	})
}

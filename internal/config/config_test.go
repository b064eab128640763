package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Cache.UpdateGuard != 5*time.Second {
		t.Fatalf("expected 5s update guard, got %v", cfg.Cache.UpdateGuard)
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contentcache.yaml")
	data := []byte(`
redis:
  cache_addrs: ["redis-a:6379", "redis-b:6379"]
  master_name: counters
  sentinel_addrs: ["sentinel:26379"]
cache:
  single_flight: true
  update_guard: 10s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(cfg.Redis.CacheAddrs) != 2 || cfg.Redis.MasterName != "counters" {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if !cfg.Cache.SingleFlight || cfg.Cache.UpdateGuard != 10*time.Second {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Daemon.LogLevel != "info" {
		t.Fatalf("expected default log level to survive, got %q", cfg.Daemon.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONTENTCACHE_REDIS_CACHE_ADDRS", "a:1, b:2 ,")
	t.Setenv("CONTENTCACHE_PG_REPLICA_DSNS", "postgres://r1,postgres://r2")
	t.Setenv("CONTENTCACHE_SINGLE_FLIGHT", "true")
	t.Setenv("CONTENTCACHE_UPDATE_GUARD", "3s")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if got := cfg.Redis.CacheAddrs; len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("unexpected cache addrs: %v", got)
	}
	if len(cfg.Postgres.ReplicaDSNs) != 2 {
		t.Fatalf("unexpected replica dsns: %v", cfg.Postgres.ReplicaDSNs)
	}
	if !cfg.Cache.SingleFlight || cfg.Cache.UpdateGuard != 3*time.Second {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}

	t.Setenv("CONTENTCACHE_SINGLE_FLIGHT", "maybe")
	if err := LoadFromEnv(cfg); err == nil {
		t.Fatal("expected error for invalid bool")
	}
}

func TestValidateSentinelNeedsAddrs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.MasterName = "counters"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without sentinel addrs")
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oriys/contentcache/internal/logging"
	"github.com/oriys/contentcache/internal/metrics"
)

// querier is the subset of *pgxpool.Pool used by read paths.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over one primary pool and zero or more
// replica pools.
type PostgresStore struct {
	primary  *pgxpool.Pool
	replicas []*pgxpool.Pool
	next     atomic.Uint32
}

func NewPostgresStore(ctx context.Context, primaryDSN string, replicaDSNs ...string) (*PostgresStore, error) {
	if primaryDSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	primary, err := pgxpool.New(ctx, primaryDSN)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	s := &PostgresStore{primary: primary}

	if err := s.Ping(ctx); err != nil {
		primary.Close()
		return nil, err
	}

	for _, dsn := range replicaDSNs {
		if dsn == "" {
			continue
		}
		replica, err := pgxpool.New(ctx, dsn)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create postgres replica pool: %w", err)
		}
		// An unreachable replica is not fatal; reads fail over to the primary.
		if err := replica.Ping(ctx); err != nil {
			logging.Op().Warn("postgres replica unreachable at startup", "error", err)
		}
		s.replicas = append(s.replicas, replica)
	}

	return s, nil
}

func (s *PostgresStore) Close() error {
	for _, r := range s.replicas {
		r.Close()
	}
	if s.primary != nil {
		s.primary.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.primary == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.primary.Ping(ctx)
}

// readOrder returns the pools to try for a lag-tolerant read: replicas in
// round-robin order followed by the primary.
func (s *PostgresStore) readOrder() []querier {
	order := make([]querier, 0, len(s.replicas)+1)
	if n := len(s.replicas); n > 0 {
		start := int(s.next.Add(1)) % n
		for i := 0; i < n; i++ {
			order = append(order, s.replicas[(start+i)%n])
		}
	}
	return append(order, s.primary)
}

// readReplica runs fn against replicas first, failing over to the next pool
// only on connection-level errors. Query errors are returned as-is.
func (s *PostgresStore) readReplica(ctx context.Context, op string, fn func(q querier) error) error {
	var err error
	for i, q := range s.readOrder() {
		err = fn(q)
		if err == nil || !isConnError(err) || ctx.Err() != nil {
			return err
		}
		if i < len(s.replicas) {
			metrics.RecordStoreFailover(op)
			logging.Op().Warn("postgres read failed, failing over", "op", op, "error", err)
		}
	}
	return err
}

func isConnError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

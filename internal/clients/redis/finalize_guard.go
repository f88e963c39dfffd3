package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

// FinalizeGuard marks an upload_id as finalized exactly once. The guard is
// advisory: callers that cannot reach redis proceed without it.
type FinalizeGuard interface {
	Acquire(ctx context.Context, uploadID string) (bool, error)
	Release(ctx context.Context, uploadID string) error
	Close() error
}

type finalizeGuard struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewFinalizeGuard(log *logger.Logger, addr string) (FinalizeGuard, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &finalizeGuard{
		log: log.With("service", "RedisFinalizeGuard"),
		rdb: rdb,
		ttl: 24 * time.Hour,
	}, nil
}

func guardKey(uploadID string) string {
	return "upload:finalize:" + uploadID
}

// Acquire returns true when this caller is the first to finalize uploadID.
func (g *finalizeGuard) Acquire(ctx context.Context, uploadID string) (bool, error) {
	if g == nil || g.rdb == nil {
		return false, fmt.Errorf("finalize guard not initialized")
	}
	ok, err := g.rdb.SetNX(ctx, guardKey(uploadID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Release frees the key so a failed finalize can be retried.
func (g *finalizeGuard) Release(ctx context.Context, uploadID string) error {
	if g == nil || g.rdb == nil {
		return fmt.Errorf("finalize guard not initialized")
	}
	return g.rdb.Del(ctx, guardKey(uploadID)).Err()
}

func (g *finalizeGuard) Close() error {
	if g == nil || g.rdb == nil {
		return nil
	}
	return g.rdb.Close()
}

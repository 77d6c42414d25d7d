// Package storage provides run report storage implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riiali/green-microbench/pkg/report"
)

const (
	reportKeyPrefix = "greenmicrobench:report:"
	latestKey       = "greenmicrobench:report:latest"
)

// RedisStore implements the Store interface on Redis. It lets multiple
// analyzer instances share reports, with TTL-based expiration.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore creates a Redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: report expiration duration (0 uses default of 24 hours)
//
// Returns an error if the connection to Redis fails or parameters are
// invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Put stores a report under "greenmicrobench:report:{runID}" and points the
// latest key at the run.
func (r *RedisStore) Put(ctx context.Context, rep *report.Report) error {
	if rep == nil || rep.RunID == "" {
		return errors.New("report run ID required")
	}
	if err := validateRunID(rep.RunID); err != nil {
		return err
	}

	data, err := rep.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := r.client.Set(ctx, reportKeyPrefix+rep.RunID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report in redis: %w", err)
	}
	if err := r.client.Set(ctx, latestKey, rep.RunID, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update latest pointer in redis: %w", err)
	}

	return nil
}

// Get retrieves the report for a run ID.
//
// Returns:
//   - report: the stored report (nil if not found)
//   - found: true if a report exists for this run
//   - error: non-nil if an error occurred (excluding "not found")
func (r *RedisStore) Get(ctx context.Context, runID string) (*report.Report, bool, error) {
	if runID == "" {
		return nil, false, errors.New("run ID required")
	}

	data, err := r.client.Get(ctx, reportKeyPrefix+runID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get report from redis: %w", err)
	}

	rep, err := report.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode report: %w", err)
	}
	return rep, true, nil
}

// Latest retrieves the most recently stored report via the latest pointer.
// The pointer can outlive the report it names when TTLs race; that reads as
// not found.
func (r *RedisStore) Latest(ctx context.Context) (*report.Report, bool, error) {
	runID, err := r.client.Get(ctx, latestKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get latest pointer from redis: %w", err)
	}
	return r.Get(ctx, runID)
}

// Close closes the Redis client connection. Safe to call multiple times.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func validateRunID(runID string) error {
	if runID == "latest" {
		return errors.New(`run ID "latest" is reserved`)
	}
	for _, c := range runID {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid run ID %q: only alphanumeric, hyphens, and underscores allowed", runID)
		}
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HatiCode/fdbwatch/pkg/archive"
)

// RedisStore implements Store on Redis so several fdbwatch instances share
// the latest reports. Reports expire after the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore connects to Redis at addr and verifies the connection.
// A ttl of 0 uses a default of 6 hours.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 6 * time.Hour
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

func reportKey(model string) string {
	return fmt.Sprintf("fdbwatch:report:%s", model)
}

// Put stores a report as JSON under "fdbwatch:report:{model}".
func (r *RedisStore) Put(ctx context.Context, report archive.Report) error {
	if err := validateModel(report.Model); err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := r.client.Set(ctx, reportKey(report.Model), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report in redis: %w", err)
	}

	return nil
}

// GetLatest returns the stored report for model. A missing key is reported
// as found == false with a nil error.
func (r *RedisStore) GetLatest(ctx context.Context, model string) (archive.Report, bool, error) {
	if model == "" {
		return archive.Report{}, false, errors.New("model name required")
	}

	data, err := r.client.Get(ctx, reportKey(model)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return archive.Report{}, false, nil
		}
		return archive.Report{}, false, fmt.Errorf("failed to get report from redis: %w", err)
	}

	var report archive.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return archive.Report{}, false, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return report, true, nil
}

// Close closes the Redis client. It is safe to call multiple times.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && errors.Is(err, redis.ErrClosed) {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

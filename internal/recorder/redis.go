package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"PivotScreener/internal/model"
)

// RedisRecorder stores the latest report under <prefix>:latest and announces each run on
// <prefix>:scans.
type RedisRecorder struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisRecorder wraps client. A zero ttl keeps the latest report forever.
func NewRedisRecorder(client *redis.Client, prefix string, ttl time.Duration) *RedisRecorder {
	if prefix == "" {
		prefix = "screener"
	}
	return &RedisRecorder{client: client, prefix: prefix, ttl: ttl, timeout: 5 * time.Second}
}

func (r *RedisRecorder) LatestKey() string    { return r.prefix + ":latest" }
func (r *RedisRecorder) ScansChannel() string { return r.prefix + ":scans" }

func (r *RedisRecorder) RecordScan(res *model.ScanResult) error {
	if res == nil || res.Report == nil {
		return nil
	}
	data, err := json.Marshal(res.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.LatestKey(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.LatestKey(), err)
	}
	if err := r.client.Publish(ctx, r.ScansChannel(), res.Report.RunID).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.ScansChannel(), err)
	}
	return nil
}

func (r *RedisRecorder) Close() error { return r.client.Close() }

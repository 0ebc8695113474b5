package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

const defaultRedisTimeout = 5 * time.Second

var _ Store = (*RedisStore)(nil)

// RedisStore persists records, patterns and feedback in Redis.
//
// Layout (all keys share Prefix):
//
//	<prefix>:records   list of JSON records, insertion order
//	<prefix>:patterns  hash pattern ID -> JSON pattern
//	<prefix>:feedback  list of JSON feedback entries, oldest first
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisStore wraps an existing client. An empty prefix defaults to
// "activityguard".
func NewRedisStore(rdb *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "activityguard"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, timeout: defaultRedisTimeout, logger: logger}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

func (r *RedisStore) SaveRecords(ctx context.Context, records []models.ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	values := make([]interface{}, 0, len(records))
	for i := range records {
		b, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("could not serialize record %s: %w", records[i].ID, err)
		}
		values = append(values, b)
	}
	if err := r.rdb.RPush(ctx, r.key("records"), values...).Err(); err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadRecords(ctx context.Context) ([]models.ActivityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.rdb.LRange(ctx, r.key("records"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	out := make([]models.ActivityRecord, 0, len(raw))
	for _, s := range raw {
		var rec models.ActivityRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			r.logger.Warn("Skipping undecodable record", zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) ClearRecords(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.rdb.Del(ctx, r.key("records")).Err(); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (r *RedisStore) ListPatterns(ctx context.Context) ([]models.ThreatPattern, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vals, err := r.rdb.HGetAll(ctx, r.key("patterns")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch patterns: %w", err)
	}

	out := make([]models.ThreatPattern, 0, len(vals))
	for id, s := range vals {
		var p models.ThreatPattern
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			r.logger.Warn("Skipping undecodable pattern", zap.String("pattern_id", id), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	sortPatterns(out)
	return out, nil
}

func (r *RedisStore) GetPattern(ctx context.Context, id string) (models.ThreatPattern, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s, err := r.rdb.HGet(ctx, r.key("patterns"), id).Result()
	if errors.Is(err, redis.Nil) {
		return models.ThreatPattern{}, fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.ThreatPattern{}, fmt.Errorf("failed to fetch pattern %s: %w", id, err)
	}

	var p models.ThreatPattern
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return models.ThreatPattern{}, fmt.Errorf("could not decode pattern %s: %w", id, err)
	}
	return p, nil
}

func (r *RedisStore) SavePattern(ctx context.Context, pattern models.ThreatPattern) error {
	if pattern.ID == "" {
		return fmt.Errorf("pattern id must not be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	b, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("could not serialize pattern %s: %w", pattern.ID, err)
	}
	if err := r.rdb.HSet(ctx, r.key("patterns"), pattern.ID, b).Err(); err != nil {
		return fmt.Errorf("failed to store pattern %s: %w", pattern.ID, err)
	}
	return nil
}

func (r *RedisStore) DeletePattern(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.rdb.HDel(ctx, r.key("patterns"), id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete pattern %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *RedisStore) AppendFeedback(ctx context.Context, entry models.FeedbackEntry, retention int) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("could not serialize feedback %s: %w", entry.ID, err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, r.key("feedback"), b)
	if retention > 0 {
		pipe.LTrim(ctx, r.key("feedback"), int64(-retention), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}
	return nil
}

func (r *RedisStore) ListFeedback(ctx context.Context, patternID string) ([]models.FeedbackEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.rdb.LRange(ctx, r.key("feedback"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feedback: %w", err)
	}

	out := make([]models.FeedbackEntry, 0, len(raw))
	for _, s := range raw {
		var e models.FeedbackEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			r.logger.Warn("Skipping undecodable feedback entry", zap.Error(err))
			continue
		}
		if patternID == "" || e.PatternID == patternID {
			out = append(out, e)
		}
	}
	return out, nil
}

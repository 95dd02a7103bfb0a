package steps

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ygrebnov/asyncproc"
)

// RedisRecord is the JSON document pushed for every task.
type RedisRecord struct {
	TaskID     string            `json:"task_id"`
	TaskIndex  int               `json:"task_index"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Values     []asyncproc.Value `json:"values"`
}

// RedisWriter appends every task to a Redis list as JSON.
// It produces no outputs; progress is reported by Written.
type RedisWriter struct {
	rdb     redis.Cmdable
	key     string
	written atomic.Int64
}

// NewRedisWriter returns a writer pushing to the list at key.
func NewRedisWriter(rdb redis.Cmdable, key string) *RedisWriter {
	return &RedisWriter{rdb: rdb, key: key}
}

// Step RPUSHes the task record. Values must be JSON-encodable.
func (w *RedisWriter) Step(ctx context.Context, t asyncproc.Task) (asyncproc.Result, error) {
	data, err := json.Marshal(RedisRecord{
		TaskID:     t.ID,
		TaskIndex:  t.Index,
		EnqueuedAt: t.EnqueuedAt,
		Values:     t.Values,
	})
	if err != nil {
		return nil, err
	}
	if err := w.rdb.RPush(ctx, w.key, data).Err(); err != nil {
		return nil, err
	}
	w.written.Add(1)
	return nil, nil
}

// Written returns the number of records pushed so far.
func (w *RedisWriter) Written() int64 { return w.written.Load() }

// Key returns the target list key.
func (w *RedisWriter) Key() string { return w.key }

package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StepLog durably records step results per workflow instance. A recorded
// step is never re-executed: the orchestrator returns the stored result, so
// a retried instance resumes at the first unrecorded step.
type StepLog interface {
	Get(ctx context.Context, instanceID, step string) ([]byte, bool, error)
	Put(ctx context.Context, instanceID, step string, result []byte) error
}

// RedisStepLog stores step results in a Redis hash per instance, expiring
// after ttl. Retention only needs to outlive the retry window of a failed
// instance.
type RedisStepLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStepLog creates a Redis-backed step log.
func NewRedisStepLog(client *redis.Client, ttl time.Duration) *RedisStepLog {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStepLog{client: client, ttl: ttl}
}

func stepKey(instanceID string) string {
	return "workflow:steps:" + instanceID
}

// Get returns the recorded result for a step, if any.
func (l *RedisStepLog) Get(ctx context.Context, instanceID, step string) ([]byte, bool, error) {
	raw, err := l.client.HGet(ctx, stepKey(instanceID), step).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Put records a step result and refreshes the instance TTL.
func (l *RedisStepLog) Put(ctx context.Context, instanceID, step string, result []byte) error {
	key := stepKey(instanceID)
	if err := l.client.HSet(ctx, key, step, result).Err(); err != nil {
		return err
	}
	return l.client.Expire(ctx, key, l.ttl).Err()
}

// MemoryStepLog is an in-process step log for tests and single-node use.
type MemoryStepLog struct {
	mu sync.Mutex
	m  map[string]map[string][]byte
}

// NewMemoryStepLog creates an in-memory step log.
func NewMemoryStepLog() *MemoryStepLog {
	return &MemoryStepLog{m: make(map[string]map[string][]byte)}
}

// Get returns the recorded result for a step, if any.
func (l *MemoryStepLog) Get(_ context.Context, instanceID, step string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	raw, ok := l.m[instanceID][step]
	return raw, ok, nil
}

// Put records a step result.
func (l *MemoryStepLog) Put(_ context.Context, instanceID, step string, result []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m[instanceID] == nil {
		l.m[instanceID] = make(map[string][]byte)
	}
	l.m[instanceID][step] = append([]byte(nil), result...)
	return nil
}

package tasksync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	submissionLockPrefix = "tasksync:submit-lock:"
	submissionLockTTL    = 10 * time.Second
)

// releaseScript deletes the lock only when this holder still owns it.
var releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// SubmissionLock is a short-TTL mutex keyed by request fingerprint. It
// rejects a second submission of the same logical request while the first
// one is still being created, without a round trip to the task store.
type SubmissionLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
	held   bool
}

// NewSubmissionLock creates a lock for one request fingerprint.
func NewSubmissionLock(client *redis.Client, fingerprint string) *SubmissionLock {
	return &SubmissionLock{
		client: client,
		key:    submissionLockPrefix + fingerprint,
		value:  uuid.New().String(),
		ttl:    submissionLockTTL,
	}
}

// NewLock creates a lock under an arbitrary key, for single-runner
// coordination of background jobs across replicas.
func NewLock(client *redis.Client, key string, ttl time.Duration) *SubmissionLock {
	if ttl <= 0 {
		ttl = submissionLockTTL
	}
	return &SubmissionLock{
		client: client,
		key:    key,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// TryLock attempts to take the lock. A nil client degrades to always
// acquiring (single-instance mode without Redis).
func (l *SubmissionLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.held = true
		return true, nil
	}
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire submission lock: %w", err)
	}
	l.held = acquired
	return acquired, nil
}

// Unlock releases the lock if this holder still owns it.
func (l *SubmissionLock) Unlock(ctx context.Context) error {
	if !l.held || l.client == nil {
		l.held = false
		return nil
	}
	l.held = false
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Err(); err != nil {
		return fmt.Errorf("failed to release submission lock: %w", err)
	}
	return nil
}

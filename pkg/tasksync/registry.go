package tasksync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	registryPrefix = "tasksync:inflight:"

	// DefaultDedupWindow is how recent an in-flight entry must be to reject
	// a duplicate submission in favor of resuming it.
	DefaultDedupWindow = 10 * time.Minute

	// registryTTL bounds how long entries survive; stale ones are also
	// pruned opportunistically on lookup.
	registryTTL = 6 * time.Hour
)

// Entry records one in-flight task, keyed by request fingerprint.
type Entry struct {
	TaskID      string    `json:"task_id"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// Registry is the per-deployment in-flight task registry. It is advisory:
// the task store stays authoritative, the registry only short-circuits
// duplicate submissions.
type Registry struct {
	client *redis.Client
	window time.Duration
}

// NewRegistry creates a registry with the default dedup window.
func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client, window: DefaultDedupWindow}
}

// WithWindow overrides the dedup recency window.
func (r *Registry) WithWindow(window time.Duration) *Registry {
	if window > 0 {
		r.window = window
	}
	return r
}

// Register records a freshly created task under its fingerprint.
func (r *Registry) Register(ctx context.Context, entry Entry) error {
	if r.client == nil {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal registry entry: %w", err)
	}
	return r.client.Set(ctx, registryPrefix+entry.Fingerprint, data, registryTTL).Err()
}

// Lookup returns the in-flight entry for a fingerprint when it is recent
// enough to resume. Entries past the recency window are pruned and ignored.
func (r *Registry) Lookup(ctx context.Context, fingerprint string) (*Entry, error) {
	if r.client == nil {
		return nil, nil
	}
	data, err := r.client.Get(ctx, registryPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry, drop it
		r.client.Del(ctx, registryPrefix+fingerprint)
		return nil, nil
	}

	if time.Since(entry.Timestamp) > r.window {
		r.client.Del(ctx, registryPrefix+fingerprint)
		return nil, nil
	}
	return &entry, nil
}

// MarkTerminal removes the entry once its task reached a terminal state.
func (r *Registry) MarkTerminal(ctx context.Context, fingerprint string) error {
	if r.client == nil {
		return nil
	}
	return r.client.Del(ctx, registryPrefix+fingerprint).Err()
}

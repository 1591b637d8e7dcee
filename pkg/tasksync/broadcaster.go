package tasksync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const eventChannel = "tasksync:events"

// TaskEvent is the typed terminal-state event carried on the broadcast
// channel so watchers stop polling without a redundant status fetch.
type TaskEvent struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Broadcaster publishes and subscribes to terminal task events.
type Broadcaster struct {
	client *redis.Client
}

// NewBroadcaster creates a broadcaster.
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// Publish announces a terminal state. Best-effort: a nil client is a no-op.
func (b *Broadcaster) Publish(ctx context.Context, event TaskEvent) error {
	if b.client == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}
	return b.client.Publish(ctx, eventChannel, data).Err()
}

// Subscribe returns a channel of terminal task events. The channel closes
// when ctx is done. Malformed payloads are skipped.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan TaskEvent, error) {
	if b.client == nil {
		ch := make(chan TaskEvent)
		close(ch)
		return ch, nil
	}

	sub := b.client.Subscribe(ctx, eventChannel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to task events: %w", err)
	}

	out := make(chan TaskEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event TaskEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- event:
				}
			}
		}
	}()
	return out, nil
}

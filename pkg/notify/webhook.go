// Package notify delivers best-effort webhook notifications for terminal
// task events. Delivery failures are logged and never fail the parent
// operation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"imgtutu/pkg/logger"
)

// Event is the webhook payload for a terminal task transition.
type Event struct {
	TaskID   string `json:"taskId"`
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Webhook posts terminal events to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier. An empty URL disables delivery.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Notify posts the event. Errors are logged, not returned.
func (w *Webhook) Notify(ctx context.Context, event Event) {
	if w == nil || w.url == "" {
		return
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to marshal webhook payload, task_id: %s, error: %v", event.TaskID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(jsonData))
	if err != nil {
		logger.ErrorCtx(ctx, "failed to create webhook request, task_id: %s, error: %v", event.TaskID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ImgTutu/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to call webhook, task_id: %s, error: %v", event.TaskID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WarnCtx(ctx, "webhook returned non-2xx status, task_id: %s, status_code: %d", event.TaskID, resp.StatusCode)
	}
}

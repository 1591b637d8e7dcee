// Package client is the caller-side counterpart of the service: an API
// client plus a polling watcher that tracks a task from submission to a
// terminal state with elapsed-time progress estimates.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imgtutu/internal/model"
)

// Client calls the service API on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates an API client. token is the user's bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Generate submits a generation request and returns the task handle.
func (c *Client) Generate(ctx context.Context, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	var resp model.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-image-task", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskStatus fetches the current state of a task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*model.TaskStatusResponse, error) {
	var resp model.TaskStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/image-task-status/"+taskID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel cancels a task.
func (c *Client) Cancel(ctx context.Context, taskID string) (*model.CancelResponse, error) {
	var resp model.CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-image/cancel", &model.CancelRequest{TaskID: taskID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Credits fetches the user's credit balance.
func (c *Client) Credits(ctx context.Context) (*model.CreditsResponse, error) {
	var resp model.CreditsResponse
	if err := c.do(ctx, http.MethodGet, "/api/credits/get", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches the user's generation history.
func (c *Client) History(ctx context.Context, limit int) ([]*model.HistoryRecord, error) {
	path := "/api/history"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var resp struct {
		History []*model.HistoryRecord `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

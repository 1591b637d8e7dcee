// Package gateway wraps the external OpenAI-compatible chat-completion
// endpoint. The provider has no structured image API; generated image URLs
// come back embedded in free-form assistant text, which the caller mines
// with pkg/extract.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imgtutu/pkg/config"
)

// Role message role
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// ContentPart one element of a multimodal message content array
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL inline image reference (data URI)
type ImageURL struct {
	URL string `json:"url"`
}

// Message one chat turn. Content is a string for plain text or a
// []ContentPart for multimodal turns; MarshalJSON picks the wire shape.
type Message struct {
	Role  Role
	Text  string
	Parts []ContentPart
}

// MarshalJSON emits either the plain-string or content-array form.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(struct {
			Role    Role          `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Text})
}

// Options per-request sampling overrides
type Options struct {
	Temperature float32
	Timeout     time.Duration // zero means the configured default
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client is a thin, retry-agnostic HTTP client for the chat endpoint.
// Retry policy belongs to the orchestrator, not here.
type Client struct {
	cfg    config.GatewayConfig
	client *http.Client
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		cfg: cfg,
		// Per-request deadlines come from context; no client-level timeout
		// so escalation races can use distinct deadlines.
		client: &http.Client{},
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends a chat completion request and returns the raw assistant
// text. It never touches the task store.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", &Error{Kind: ErrTimeout, Message: "model request timed out", Retryable: true}
		}
		return "", &Error{Kind: ErrProvider, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &Error{Kind: ErrProvider, Message: fmt.Sprintf("failed to decode response: %v", err), Retryable: true}
	}
	if len(chatResp.Choices) == 0 {
		return "", &Error{Kind: ErrProvider, Message: "empty choices in response", Retryable: true}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// mapHTTPError maps provider status codes to the gateway error taxonomy.
func mapHTTPError(status int, msg string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Kind: ErrInvalidCredential, Message: msg, HTTPStatus: status}
	case http.StatusTooManyRequests:
		return &Error{Kind: ErrProvider, Message: msg, HTTPStatus: status, Retryable: true}
	case http.StatusPaymentRequired, http.StatusForbidden, http.StatusBadRequest:
		// Several providers report exhausted quota as 400/402/403 with a
		// quota keyword in the message.
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") ||
			strings.Contains(lower, "credit") ||
			strings.Contains(lower, "insufficient") {
			return &Error{Kind: ErrQuotaExceeded, Message: msg, HTTPStatus: status}
		}
		return &Error{Kind: ErrProvider, Message: msg, HTTPStatus: status}
	default:
		return &Error{Kind: ErrProvider, Message: msg, HTTPStatus: status, Retryable: status >= 500}
	}
}

// readErrorMessage extracts an error message from a provider error body,
// falling back to the raw text.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "provider error"
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}

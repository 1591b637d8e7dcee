package model

import "time"

// HistoryRecord one gallery entry, appended on successful generation
type HistoryRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style,omitempty"`
	ModelUsed string    `json:"model_used,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

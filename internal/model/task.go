package model

import (
	"time"
)

// TaskStatus task status
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"    // created, not yet dispatched (or awaiting retry)
	TaskStatusProcessing TaskStatus = "processing" // dispatch in flight
	TaskStatusCompleted  TaskStatus = "completed"  // terminal, result_url set
	TaskStatusFailed     TaskStatus = "failed"     // terminal, error_message set
	TaskStatusCancelled  TaskStatus = "cancelled"  // terminal, user-initiated
)

// Terminal reports whether the status admits no further transition.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task generation task model
type Task struct {
	TaskID       string     `json:"task_id"`
	UserID       string     `json:"user_id"`
	Status       TaskStatus `json:"status"`
	Prompt       string     `json:"prompt"`
	Style        string     `json:"style,omitempty"`
	AspectRatio  string     `json:"aspect_ratio,omitempty"`
	ImageBase64  string     `json:"image_base64,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	ResultURL    string     `json:"result_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Progress     *int       `json:"progress,omitempty"`
	CurrentStage string     `json:"current_stage,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// GenerateRequest submit generation request
type GenerateRequest struct {
	Prompt              string `json:"prompt"`
	Image               string `json:"image,omitempty"` // data URI or raw base64
	Style               string `json:"style,omitempty"`
	AspectRatio         string `json:"aspectRatio,omitempty"`
	StandardAspectRatio string `json:"standardAspectRatio,omitempty"`
}

// GenerateResponse submit generation response
type GenerateResponse struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
}

// TaskStatusResponse task status response
type TaskStatusResponse struct {
	TaskID    string     `json:"taskId"`
	Status    TaskStatus `json:"status"`
	ImageURL  *string    `json:"imageUrl"`
	Error     *string    `json:"error"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	WaitTime  int64      `json:"waitTime"` // seconds since creation
	Progress  *int       `json:"progress,omitempty"`
	Stage     string     `json:"stage,omitempty"`
}

// CancelRequest cancel task request
type CancelRequest struct {
	TaskID string `json:"taskId" binding:"required"`
}

// CancelResponse cancel task response
type CancelResponse struct {
	Success         bool       `json:"success"`
	Status          TaskStatus `json:"status"`
	CreditsRefunded bool       `json:"creditsRefunded"`
}

// SweepResult summary of one sweeper run
type SweepResult struct {
	Processed int           `json:"processed"`
	TimedOut  int           `json:"timedOut"`
	Results   []SweepOutcome `json:"results"`
}

// QueueStats task counts per status
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}

// SweepOutcome outcome of one task within a sweeper run
type SweepOutcome struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

package model

import "time"

// Task Postgres model for the generation_tasks table. The table is both the
// queue and the durable log: the sweeper and the orchestrator both poll it.
type Task struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID       string     `gorm:"column:task_id;type:varchar(64);not null;uniqueIndex:idx_task_id_unique" json:"task_id"`
	UserID       string     `gorm:"column:user_id;type:varchar(64);not null;index:idx_user_status,priority:1" json:"user_id"`
	Status       string     `gorm:"column:status;type:varchar(20);not null;index:idx_status;index:idx_user_status,priority:2" json:"status"`
	Prompt       string     `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Style        string     `gorm:"column:style;type:varchar(100)" json:"style"`
	AspectRatio  string     `gorm:"column:aspect_ratio;type:varchar(20)" json:"aspect_ratio"`
	ImageBase64  string     `gorm:"column:image_base64;type:text" json:"image_base64,omitempty"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	ResultURL    string     `gorm:"column:result_url;type:text" json:"result_url"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message"`
	Progress     *int       `gorm:"column:progress_percentage" json:"progress_percentage,omitempty"`
	CurrentStage string     `gorm:"column:current_stage;type:varchar(50)" json:"current_stage,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP;index:idx_created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "generation_tasks"
}

package model

import "time"

// HistoryRecord Postgres model for the generation_history table.
// Append-only; rows are written best-effort on task completion.
type HistoryRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_history_user" json:"user_id"`
	ImageURL  string    `gorm:"column:image_url;type:text;not null" json:"image_url"`
	Prompt    string    `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Style     string    `gorm:"column:style;type:varchar(100)" json:"style"`
	ModelUsed string    `gorm:"column:model_used;type:varchar(100)" json:"model_used"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP;index:idx_history_created" json:"created_at"`
}

// TableName specifies the table name for HistoryRecord
func (HistoryRecord) TableName() string {
	return "generation_history"
}

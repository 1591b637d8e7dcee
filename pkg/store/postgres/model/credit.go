package model

import "time"

// CreditBalance Postgres model for the credits table
type CreditBalance struct {
	UserID    string    `gorm:"column:user_id;type:varchar(64);primaryKey" json:"user_id"`
	Credits   int64     `gorm:"column:credits;not null;default:0" json:"credits"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for CreditBalance
func (CreditBalance) TableName() string {
	return "credits"
}

package model

import "time"

// PaymentOrder Postgres model for the payment_orders table
type PaymentOrder struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   string     `gorm:"column:order_id;type:varchar(64);not null;uniqueIndex:idx_order_id_unique" json:"order_id"`
	UserID    string     `gorm:"column:user_id;type:varchar(64);not null;index:idx_order_user" json:"user_id"`
	Plan      string     `gorm:"column:plan;type:varchar(50);not null" json:"plan"`
	Credits   int64      `gorm:"column:credits;not null" json:"credits"`
	AmountFen int64      `gorm:"column:amount_fen;not null" json:"amount_fen"`
	Status    string     `gorm:"column:status;type:varchar(20);not null;index:idx_order_status" json:"status"`
	PayURL    string     `gorm:"column:pay_url;type:text" json:"pay_url"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	PaidAt    *time.Time `gorm:"column:paid_at" json:"paid_at"`
}

// TableName specifies the table name for PaymentOrder
func (PaymentOrder) TableName() string {
	return "payment_orders"
}

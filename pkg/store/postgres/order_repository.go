package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OrderRepository handles payment order persistence in Postgres
type OrderRepository struct {
	ds *Datastore
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(ds *Datastore) *OrderRepository {
	return &OrderRepository{ds: ds}
}

// Create creates a new payment order
func (r *OrderRepository) Create(ctx context.Context, order *PaymentOrder) error {
	return r.ds.DB(ctx).Create(order).Error
}

// Get retrieves an order by external order ID
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*PaymentOrder, error) {
	var order PaymentOrder
	err := r.ds.DB(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// GetForUser retrieves an order scoped to its owner
func (r *OrderRepository) GetForUser(ctx context.Context, orderID, userID string) (*PaymentOrder, error) {
	var order PaymentOrder
	err := r.ds.DB(ctx).Where("order_id = ? AND user_id = ?", orderID, userID).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// MarkPaid transitions an order from pending to paid (CAS on status so a
// concurrent status check cannot credit the user twice).
// Returns rowsAffected; zero means the order was already settled.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string) (int64, error) {
	now := time.Now()
	result := r.ds.DB(ctx).Model(&PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, "pending").
		Updates(map[string]interface{}{
			"status":     "paid",
			"paid_at":    now,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark order paid: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UpdateStatus sets a non-paid terminal status (failed, expired)
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID, status string) error {
	return r.ds.DB(ctx).Model(&PaymentOrder{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// ExecTx executes a function within a transaction
func (r *OrderRepository) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.ds.ExecTx(ctx, fn)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository handles credit balance persistence in Postgres
type CreditRepository struct {
	ds *Datastore
}

// NewCreditRepository creates a new credit repository
func NewCreditRepository(ds *Datastore) *CreditRepository {
	return &CreditRepository{ds: ds}
}

// Get retrieves a user's balance row
func (r *CreditRepository) Get(ctx context.Context, userID string) (*CreditBalance, error) {
	var balance CreditBalance
	err := r.ds.DB(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credits: %w", err)
	}
	return &balance, nil
}

// EnsureRow lazily creates the balance row with the default grant.
// ON CONFLICT DO NOTHING keeps concurrent first requests from double-granting.
func (r *CreditRepository) EnsureRow(ctx context.Context, userID string, defaultCredits int64) error {
	now := time.Now()
	balance := &CreditBalance{
		UserID:    userID,
		Credits:   defaultCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.ds.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(balance).Error
}

// Deduct subtracts amount, guarded so the balance never goes negative.
// Returns the number of rows updated; zero means insufficient credits.
func (r *CreditRepository) Deduct(ctx context.Context, userID string, amount int64) (int64, error) {
	result := r.ds.DB(ctx).Model(&CreditBalance{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deduct credits: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Add increments the balance
func (r *CreditRepository) Add(ctx context.Context, userID string, amount int64) error {
	result := r.ds.DB(ctx).Model(&CreditBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to add credits: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("credit row not found: user_id=%s", userID)
	}
	return nil
}

// ExecTx executes a function within a transaction
func (r *CreditRepository) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.ds.ExecTx(ctx, fn)
}

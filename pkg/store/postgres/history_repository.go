package postgres

import (
	"context"
	"fmt"
)

// HistoryRepository handles the append-only generation history in Postgres
type HistoryRepository struct {
	ds *Datastore
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(ds *Datastore) *HistoryRepository {
	return &HistoryRepository{ds: ds}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, record *HistoryRecord) error {
	return r.ds.DB(ctx).Create(record).Error
}

// ListByUser retrieves a user's history, newest first
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*HistoryRecord
	err := r.ds.DB(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

// Delete removes one record, scoped to its owner.
// Returns rowsAffected so callers can distinguish not-found.
func (r *HistoryRepository) Delete(ctx context.Context, id int64, userID string) (int64, error) {
	result := r.ds.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&HistoryRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete history record: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ClearForUser removes a user's entire history.
func (r *HistoryRepository) ClearForUser(ctx context.Context, userID string) (int64, error) {
	result := r.ds.DB(ctx).
		Where("user_id = ?", userID).
		Delete(&HistoryRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

package service

import (
	"context"

	"imgtutu/internal/model"
	"imgtutu/pkg/logger"
	"imgtutu/pkg/store/postgres"
)

const defaultHistoryLimit = 50

// HistoryService reads and deletes entries of the per-user generation
// gallery.
type HistoryService struct {
	historyRepo HistoryRepository
}

// NewHistoryService creates a history service.
func NewHistoryService(historyRepo HistoryRepository) *HistoryService {
	return &HistoryService{historyRepo: historyRepo}
}

// List returns a page of the user's generations, newest first.
func (s *HistoryService) List(ctx context.Context, userID string, limit, offset int) ([]*model.HistoryRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	records, err := s.historyRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	result := make([]*model.HistoryRecord, 0, len(records))
	for _, r := range records {
		result = append(result, postgres.ToHistoryDomain(r))
	}
	return result, nil
}

// Delete removes one entry, scoped to its owner.
func (s *HistoryService) Delete(ctx context.Context, userID string, id int64) error {
	affected, err := s.historyRepo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrHistoryNotFound
	}
	return nil
}

// Clear deletes the user's entire history and reports how many entries went.
func (s *HistoryService) Clear(ctx context.Context, userID string) (int64, error) {
	deleted, err := s.historyRepo.ClearForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.InfoCtx(ctx, "history cleared, user_id: %s, deleted: %d", userID, deleted)
	return deleted, nil
}

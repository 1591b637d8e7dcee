package postgres

import (
	"imgtutu/internal/model"
)

// ToTaskDomain converts a store task to the domain representation
func ToTaskDomain(t *Task) *model.Task {
	if t == nil {
		return nil
	}
	return &model.Task{
		TaskID:       t.TaskID,
		UserID:       t.UserID,
		Status:       model.TaskStatus(t.Status),
		Prompt:       t.Prompt,
		Style:        t.Style,
		AspectRatio:  t.AspectRatio,
		ImageBase64:  t.ImageBase64,
		AttemptCount: t.AttemptCount,
		ResultURL:    t.ResultURL,
		ErrorMessage: t.ErrorMessage,
		Progress:     t.Progress,
		CurrentStage: t.CurrentStage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CompletedAt:  t.CompletedAt,
	}
}

// ToHistoryDomain converts a store history record to the domain representation
func ToHistoryDomain(h *HistoryRecord) *model.HistoryRecord {
	if h == nil {
		return nil
	}
	return &model.HistoryRecord{
		ID:        h.ID,
		UserID:    h.UserID,
		ImageURL:  h.ImageURL,
		Prompt:    h.Prompt,
		Style:     h.Style,
		ModelUsed: h.ModelUsed,
		CreatedAt: h.CreatedAt,
	}
}

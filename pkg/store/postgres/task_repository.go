package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TaskRepository handles task persistence in Postgres
type TaskRepository struct {
	ds *Datastore
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(ds *Datastore) *TaskRepository {
	return &TaskRepository{ds: ds}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *Task) error {
	return r.ds.DB(ctx).Create(task).Error
}

// Get retrieves a task by external task ID
func (r *TaskRepository) Get(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	err := r.ds.DB(ctx).Where("task_id = ?", taskID).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// GetForUser retrieves a task scoped to its owner
func (r *TaskRepository) GetForUser(ctx context.Context, taskID, userID string) (*Task, error) {
	var task Task
	err := r.ds.DB(ctx).Where("task_id = ? AND user_id = ?", taskID, userID).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// UpdateFields updates specific fields of a task by task_id
func (r *TaskRepository) UpdateFields(ctx context.Context, taskID string, updates map[string]interface{}) error {
	return r.ds.DB(ctx).Model(&Task{}).
		Where("task_id = ?", taskID).
		Updates(updates).Error
}

// UpdateFieldsWithStatus updates a task with CAS (Compare-And-Swap) on status.
// The update applies only while the task is still in one of expectedStatuses,
// which is what makes terminal transitions idempotent across the orchestrator,
// the sweeper, and cancel racing on the same row.
// Returns rowsAffected so callers can tell a lost race from success.
func (r *TaskRepository) UpdateFieldsWithStatus(ctx context.Context, taskID string, expectedStatuses []string, updates map[string]interface{}) (int64, error) {
	result := r.ds.DB(ctx).Model(&Task{}).
		Where("task_id = ? AND status IN ?", taskID, expectedStatuses).
		Updates(updates)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to update task: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// IncrementAttempt bumps attempt_count and touches updated_at
func (r *TaskRepository) IncrementAttempt(ctx context.Context, taskID string) error {
	return r.ds.DB(ctx).Model(&Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    time.Now(),
		}).Error
}

// GetStaleTasks retrieves pending/processing tasks created before the cutoff,
// oldest first, bounded by limit
func (r *TaskRepository) GetStaleTasks(ctx context.Context, cutoff time.Time, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []*Task
	err := r.ds.DB(ctx).
		Where("status IN ? AND created_at < ?", []string{"pending", "processing"}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stale tasks: %w", err)
	}
	return tasks, nil
}

// GetRetryableTasks retrieves pending tasks within the timeout window that
// still have attempts left, oldest first, bounded by limit
func (r *TaskRepository) GetRetryableTasks(ctx context.Context, since time.Time, maxAttempts, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []*Task
	err := r.ds.DB(ctx).
		Where("status = ? AND attempt_count < ? AND created_at >= ?", "pending", maxAttempts, since).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get retryable tasks: %w", err)
	}
	return tasks, nil
}

// ListByUser retrieves a user's tasks, newest first
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []*Task
	err := r.ds.DB(ctx).
		// Exclude the potentially large input image from list views
		Select("id", "task_id", "user_id", "status", "prompt", "style", "aspect_ratio",
			"attempt_count", "result_url", "error_message", "progress_percentage",
			"current_stage", "created_at", "updated_at", "completed_at").
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// CountByStatus counts tasks by status globally
func (r *TaskRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&Task{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CleanupOldTasks removes terminal tasks older than the given time in batches
func (r *TaskRepository) CleanupOldTasks(ctx context.Context, before time.Time) (int64, error) {
	const batchSize = 5000
	var total int64
	for {
		result := r.ds.DB(ctx).
			Where("status IN ? AND updated_at < ?", []string{"completed", "failed", "cancelled"}, before).
			Limit(batchSize).
			Delete(&Task{})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
		if result.RowsAffected < batchSize {
			break
		}
		time.Sleep(100 * time.Millisecond) // avoid overwhelming DB
	}
	return total, nil
}

// ExecTx executes a function within a transaction
func (r *TaskRepository) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.ds.ExecTx(ctx, fn)
}

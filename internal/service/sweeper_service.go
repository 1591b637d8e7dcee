package service

import (
	"context"
	"fmt"
	"time"

	"imgtutu/internal/model"
	"imgtutu/pkg/config"
	"imgtutu/pkg/logger"
	"imgtutu/pkg/store/postgres"
)

const defaultSweepBatch = 20

// SweeperService reaps abandoned tasks and re-drives retryable ones. It is
// the recovery path for dispatch goroutines lost to a crash or deploy: the
// durable task table holds the work, so a later sweep picks it back up.
type SweeperService struct {
	taskRepo   TaskRepository
	taskSvc    *TaskService
	gatewayCfg config.GatewayConfig
	taskCfg    config.TaskConfig
}

// NewSweeperService creates a sweeper service.
func NewSweeperService(taskRepo TaskRepository, taskSvc *TaskService, gatewayCfg config.GatewayConfig, taskCfg config.TaskConfig) *SweeperService {
	return &SweeperService{
		taskRepo:   taskRepo,
		taskSvc:    taskSvc,
		gatewayCfg: gatewayCfg,
		taskCfg:    taskCfg,
	}
}

// Sweep runs one pass: time out tasks older than the stale window, then
// re-dispatch pending tasks that still have attempts left.
func (s *SweeperService) Sweep(ctx context.Context) (*model.SweepResult, error) {
	batch := s.taskCfg.SweepBatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}

	result := &model.SweepResult{Results: []model.SweepOutcome{}}
	cutoff := time.Now().Add(-s.taskCfg.StaleTimeout())

	stale, err := s.taskRepo.GetStaleTasks(ctx, cutoff, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale tasks: %w", err)
	}
	for _, task := range stale {
		outcome := s.timeOut(ctx, task)
		result.Results = append(result.Results, outcome)
		result.Processed++
		if outcome.Status == model.TaskStatusFailed {
			result.TimedOut++
		}
	}

	retryable, err := s.taskRepo.GetRetryableTasks(ctx, cutoff, s.gatewayCfg.MaxAttempts(), batch)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable tasks: %w", err)
	}
	for _, task := range retryable {
		logger.InfoCtx(ctx, "sweeper re-driving task, task_id: %s, attempts: %d", task.TaskID, task.AttemptCount)
		s.taskSvc.Dispatch(ctx, task.TaskID)
		result.Processed++
		fresh, err := s.taskRepo.Get(ctx, task.TaskID)
		outcome := model.SweepOutcome{TaskID: task.TaskID}
		if err != nil || fresh == nil {
			outcome.Status = model.TaskStatus(task.Status)
			outcome.Error = "status unknown after dispatch"
		} else {
			outcome.Status = model.TaskStatus(fresh.Status)
			outcome.Error = fresh.ErrorMessage
		}
		result.Results = append(result.Results, outcome)
	}

	if result.Processed > 0 {
		logger.InfoCtx(ctx, "sweep finished, processed: %d, timed_out: %d", result.Processed, result.TimedOut)
	}
	return result, nil
}

// QueueStats counts tasks per status for the monitoring endpoint.
func (s *SweeperService) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	stats := &model.QueueStats{}
	for status, target := range map[model.TaskStatus]*int64{
		model.TaskStatusPending:    &stats.Pending,
		model.TaskStatusProcessing: &stats.Processing,
		model.TaskStatusCompleted:  &stats.Completed,
		model.TaskStatusFailed:     &stats.Failed,
		model.TaskStatusCancelled:  &stats.Cancelled,
	} {
		n, err := s.taskRepo.CountByStatus(ctx, string(status))
		if err != nil {
			return nil, fmt.Errorf("failed to count %s tasks: %w", status, err)
		}
		*target = n
	}
	return stats, nil
}

// timeOut fails one stale task via the terminal CAS and refunds it. A task
// that completed between listing and the CAS is left alone.
func (s *SweeperService) timeOut(ctx context.Context, task *postgres.Task) model.SweepOutcome {
	cause := fmt.Errorf("task timed out after %s", s.taskCfg.StaleTimeout())
	affected, err := s.taskRepo.UpdateFieldsWithStatus(ctx, task.TaskID,
		[]string{string(model.TaskStatusPending), string(model.TaskStatusProcessing)},
		map[string]interface{}{
			"status":        string(model.TaskStatusFailed),
			"error_message": cause.Error(),
			"current_stage": "failed",
		})
	if err != nil {
		logger.ErrorCtx(ctx, "failed to time out task, task_id: %s, error: %v", task.TaskID, err)
		return model.SweepOutcome{TaskID: task.TaskID, Status: model.TaskStatus(task.Status), Error: err.Error()}
	}
	if affected == 0 {
		fresh, err := s.taskRepo.Get(ctx, task.TaskID)
		if err == nil && fresh != nil {
			return model.SweepOutcome{TaskID: task.TaskID, Status: model.TaskStatus(fresh.Status)}
		}
		return model.SweepOutcome{TaskID: task.TaskID, Status: model.TaskStatus(task.Status)}
	}

	if err := s.taskSvc.creditRepo.Add(ctx, task.UserID, generationCost); err != nil {
		logger.ErrorCtx(ctx, "failed to refund timed-out task, task_id: %s, error: %v", task.TaskID, err)
	}
	s.taskSvc.finishTerminal(ctx, task, model.TaskStatusFailed, "", cause.Error())

	logger.WarnCtx(ctx, "task timed out, task_id: %s, age: %s", task.TaskID, time.Since(task.CreatedAt))
	return model.SweepOutcome{TaskID: task.TaskID, Status: model.TaskStatusFailed, Error: cause.Error()}
}

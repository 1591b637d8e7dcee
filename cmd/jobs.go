package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"imgtutu/internal/jobs"
	"imgtutu/internal/service"
	"imgtutu/pkg/logger"
	postgresstore "imgtutu/pkg/store/postgres"
	"imgtutu/pkg/tasksync"
)

// rawRedis unwraps the optional Redis client.
func (app *Application) rawRedis() *redis.Client {
	if app.redisClient == nil {
		return nil
	}
	return app.redisClient.GetClient()
}

func (app *Application) initJobs() error {
	if app.sweeperService == nil {
		logger.WarnCtx(app.ctx, "Service layer not fully initialized yet, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx)

	interval := time.Duration(app.config.Cron.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}

	// One sweep runner across replicas; without Redis the lock degrades
	// to single-instance mode.
	sweepLock := tasksync.NewLock(app.rawRedis(), "jobs:sweep-lock", interval)
	manager.Register(newSweepJob(interval, app.sweeperService, sweepLock))

	if app.config.Task.RetentionDays > 0 {
		retention := time.Duration(app.config.Task.RetentionDays) * 24 * time.Hour
		retentionLock := tasksync.NewLock(app.rawRedis(), "jobs:retention-lock", time.Hour)
		manager.Register(newRetentionJob(retention, app.postgresRepo.Task, retentionLock))
	}

	app.jobsManager = manager
	return nil
}

// sweepJob periodically reaps stale tasks and re-drives retryable ones.
type sweepJob struct {
	interval       time.Duration
	sweeperService *service.SweeperService
	lock           *tasksync.SubmissionLock
}

func newSweepJob(interval time.Duration, svc *service.SweeperService, lock *tasksync.SubmissionLock) jobs.Job {
	return &sweepJob{
		interval:       interval,
		sweeperService: svc,
		lock:           lock,
	}
}

func (j *sweepJob) Name() string {
	return "task-sweep"
}

func (j *sweepJob) Interval() time.Duration {
	return j.interval
}

func (j *sweepJob) Run(ctx context.Context) error {
	if j.sweeperService == nil {
		return fmt.Errorf("sweeper service not configured")
	}

	if j.lock != nil {
		acquired, err := j.lock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running the sweep, skipping this cycle")
			return nil
		}
		defer j.lock.Unlock(ctx)
	}

	result, err := j.sweeperService.Sweep(ctx)
	if err != nil {
		return err
	}
	if result.Processed > 0 {
		logger.DebugCtx(ctx, "sweep job processed %d tasks", result.Processed)
	}
	return nil
}

// retentionJob purges terminal tasks past the retention window.
type retentionJob struct {
	retention time.Duration
	taskRepo  *postgresstore.TaskRepository
	lock      *tasksync.SubmissionLock
}

func newRetentionJob(retention time.Duration, taskRepo *postgresstore.TaskRepository, lock *tasksync.SubmissionLock) jobs.Job {
	return &retentionJob{
		retention: retention,
		taskRepo:  taskRepo,
		lock:      lock,
	}
}

func (j *retentionJob) Name() string {
	return "task-retention"
}

func (j *retentionJob) Interval() time.Duration {
	return 6 * time.Hour
}

func (j *retentionJob) Run(ctx context.Context) error {
	if j.lock != nil {
		acquired, err := j.lock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running retention cleanup, skipping this cycle")
			return nil
		}
		defer j.lock.Unlock(ctx)
	}

	before := time.Now().Add(-j.retention)
	deleted, err := j.taskRepo.CleanupOldTasks(ctx, before)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.InfoCtx(ctx, "retention cleanup removed %d terminal tasks older than %s", deleted, before.Format(time.RFC3339))
	}
	return nil
}

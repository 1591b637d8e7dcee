package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"imgtutu/internal/model"
	"imgtutu/pkg/config"
	"imgtutu/pkg/extract"
	"imgtutu/pkg/gateway"
	"imgtutu/pkg/logger"
	"imgtutu/pkg/notify"
	"imgtutu/pkg/store/postgres"
	"imgtutu/pkg/tasksync"
)

const generationCost = 1 // credits per task

// TaskService owns the generation pipeline: submission, dispatch with
// bounded retries, cancellation and status reads. The task table is the
// queue; dispatch runs asynchronously after submission returns.
type TaskService struct {
	taskRepo    TaskRepository
	creditRepo  CreditRepository
	historyRepo HistoryRepository
	completer   Completer
	extractor   *extract.Extractor
	registry    *tasksync.Registry
	broadcaster *tasksync.Broadcaster
	notifier    Notifier
	redisClient *redis.Client
	gatewayCfg  config.GatewayConfig
	taskCfg     config.TaskConfig

	backoffBase     time.Duration
	escalationDelay time.Duration

	// startDispatch decouples submission from dispatch; tests replace it
	// to drive the pipeline synchronously.
	startDispatch func(taskID string)
}

// NewTaskService creates a task service.
func NewTaskService(
	taskRepo TaskRepository,
	creditRepo CreditRepository,
	historyRepo HistoryRepository,
	completer Completer,
	extractor *extract.Extractor,
	registry *tasksync.Registry,
	broadcaster *tasksync.Broadcaster,
	notifier Notifier,
	redisClient *redis.Client,
	gatewayCfg config.GatewayConfig,
	taskCfg config.TaskConfig,
) *TaskService {
	s := &TaskService{
		taskRepo:    taskRepo,
		creditRepo:  creditRepo,
		historyRepo: historyRepo,
		completer:   completer,
		extractor:   extractor,
		registry:    registry,
		broadcaster: broadcaster,
		notifier:    notifier,
		redisClient: redisClient,
		gatewayCfg:  gatewayCfg,
		taskCfg:     taskCfg,

		backoffBase:     time.Duration(gatewayCfg.BackoffSeconds) * time.Second,
		escalationDelay: time.Duration(gatewayCfg.EscalationDelay) * time.Second,
	}
	if s.backoffBase <= 0 {
		s.backoffBase = 2 * time.Second
	}
	s.startDispatch = func(taskID string) {
		go s.Dispatch(context.Background(), taskID)
	}
	return s
}

// Create validates the request, charges one credit and inserts the pending
// task in a single transaction, so a failed insert never leaves a dangling
// debit. Recent identical submissions resume the in-flight task instead of
// creating (and charging for) a second one.
func (s *TaskService) Create(ctx context.Context, userID string, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" && req.Image == "" {
		return nil, model.ErrPromptRequired
	}

	imageData, err := s.decodeImage(req.Image)
	if err != nil {
		return nil, err
	}

	aspectRatio := req.AspectRatio
	if req.StandardAspectRatio != "" {
		aspectRatio = req.StandardAspectRatio
	}

	fingerprint := tasksync.Fingerprint(req.Prompt, imageData, req.Style, aspectRatio)
	if entry, err := s.registry.Lookup(ctx, fingerprint); err != nil {
		logger.WarnCtx(ctx, "in-flight registry lookup failed, fingerprint: %s, error: %v", fingerprint, err)
	} else if entry != nil {
		// A matching task is already running; hand back its id so the
		// caller resumes watching it instead of paying twice.
		logger.InfoCtx(ctx, "duplicate submission resumed, task_id: %s, fingerprint: %s", entry.TaskID, fingerprint)
		return &model.GenerateResponse{TaskID: entry.TaskID, Status: model.TaskStatus(entry.Status)}, nil
	}

	lock := tasksync.NewSubmissionLock(s.redisClient, fingerprint)
	acquired, err := lock.TryLock(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "submission lock error, fingerprint: %s, error: %v", fingerprint, err)
	} else if !acquired {
		return nil, model.ErrDuplicateSubmission
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			logger.WarnCtx(ctx, "failed to release submission lock, fingerprint: %s, error: %v", fingerprint, err)
		}
	}()

	taskID := uuid.New().String()
	task := &postgres.Task{
		TaskID:      taskID,
		UserID:      userID,
		Status:      string(model.TaskStatusPending),
		Prompt:      req.Prompt,
		Style:       req.Style,
		AspectRatio: aspectRatio,
		ImageBase64: imageData,
	}

	err = s.creditRepo.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.creditRepo.EnsureRow(txCtx, userID, s.taskCfg.DefaultCredits); err != nil {
			return err
		}
		affected, err := s.creditRepo.Deduct(txCtx, userID, generationCost)
		if err != nil {
			return err
		}
		if affected == 0 {
			return model.ErrInsufficientCredits
		}
		return s.taskRepo.Create(txCtx, task)
	})
	if err != nil {
		return nil, err
	}

	if err := s.registry.Register(ctx, tasksync.Entry{
		TaskID:      taskID,
		Fingerprint: fingerprint,
		Status:      string(model.TaskStatusPending),
	}); err != nil {
		logger.WarnCtx(ctx, "failed to register in-flight task, task_id: %s, error: %v", taskID, err)
	}

	logger.InfoCtx(ctx, "task created, task_id: %s, user_id: %s", taskID, userID)
	s.startDispatch(taskID)
	return &model.GenerateResponse{TaskID: taskID, Status: model.TaskStatusPending}, nil
}

// Dispatch drives one task from pending to a terminal state: bounded
// gateway attempts with backoff, URL extraction, then the terminal CAS
// transition. Safe to call from both the submission path and the sweeper;
// the pending->processing CAS makes concurrent drivers lose cleanly.
func (s *TaskService) Dispatch(ctx context.Context, taskID string) {
	affected, err := s.taskRepo.UpdateFieldsWithStatus(ctx, taskID,
		[]string{string(model.TaskStatusPending)},
		map[string]interface{}{
			"status":        string(model.TaskStatusProcessing),
			"current_stage": "generating",
		})
	if err != nil {
		logger.ErrorCtx(ctx, "failed to claim task, task_id: %s, error: %v", taskID, err)
		return
	}
	if affected == 0 {
		// Someone else claimed it, or it was cancelled first.
		logger.DebugCtx(ctx, "task already claimed, task_id: %s", taskID)
		return
	}

	task, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to load claimed task, task_id: %s, error: %v", taskID, err)
		return
	}

	maxAttempts := s.gatewayCfg.MaxAttempts()
	var lastErr error
	for task.AttemptCount < maxAttempts {
		if err := s.taskRepo.IncrementAttempt(ctx, taskID); err != nil {
			logger.ErrorCtx(ctx, "failed to record attempt, task_id: %s, error: %v", taskID, err)
			return
		}
		task.AttemptCount++

		content, err := s.completeWithEscalation(ctx, task)
		if err != nil {
			lastErr = err
			if !gateway.IsRetryable(err) {
				break
			}
			logger.WarnCtx(ctx, "gateway attempt failed, task_id: %s, attempt: %d, error: %v", taskID, task.AttemptCount, err)
			s.recordAttemptError(ctx, taskID, err)
			s.backoff(ctx, task.AttemptCount)
			continue
		}

		imageURL := s.extractor.ImageURL(content)
		if imageURL == "" {
			lastErr = fmt.Errorf("no image URL in gateway response")
			logger.WarnCtx(ctx, "no image URL extracted, task_id: %s, attempt: %d", taskID, task.AttemptCount)
			s.recordAttemptError(ctx, taskID, lastErr)
			s.backoff(ctx, task.AttemptCount)
			continue
		}

		s.complete(ctx, task, imageURL)
		return
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("generation failed after %d attempts", maxAttempts)
	}
	s.fail(ctx, task, lastErr)
}

// completeWithEscalation races the primary request against a second one
// started after the escalation delay with perturbed sampling. The first
// successful response wins; the loser is cancelled.
func (s *TaskService) completeWithEscalation(ctx context.Context, task *postgres.Task) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.gatewayCfg.Timeout())
	defer cancel()

	messages := s.buildMessages(task)

	delay := s.escalationDelay
	if delay <= 0 {
		return s.completer.Complete(reqCtx, messages, gateway.Options{Temperature: 0.7})
	}

	type result struct {
		content string
		err     error
	}
	results := make(chan result, 2)

	go func() {
		content, err := s.completer.Complete(reqCtx, messages, gateway.Options{Temperature: 0.7})
		results <- result{content, err}
	}()

	escalated := 1
	var firstErr error
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for received := 0; received < escalated; {
		select {
		case <-timer.C:
			escalated = 2
			go func() {
				content, err := s.completer.Complete(reqCtx, messages, gateway.Options{Temperature: 0.9})
				results <- result{content, err}
			}()
		case r := <-results:
			received++
			if r.err == nil {
				return r.content, nil
			}
			if firstErr == nil {
				firstErr = r.err
			}
		}
	}
	return "", firstErr
}

func (s *TaskService) buildMessages(task *postgres.Task) []gateway.Message {
	prompt := task.Prompt
	if task.Style != "" {
		prompt = fmt.Sprintf("%s, style: %s", prompt, task.Style)
	}
	if task.AspectRatio != "" {
		prompt = fmt.Sprintf("%s, aspect ratio %s (%s)", prompt, task.AspectRatio, resolutionFor(task.AspectRatio))
	}

	if task.ImageBase64 == "" {
		return []gateway.Message{{Role: gateway.RoleUser, Text: prompt}}
	}
	if strings.TrimSpace(prompt) == "" {
		// Image-only submission: the reference image carries the intent.
		prompt = "Generate an image based on the reference image"
	}
	return []gateway.Message{{
		Role: gateway.RoleUser,
		Parts: []gateway.ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &gateway.ImageURL{URL: task.ImageBase64}},
		},
	}}
}

// resolutionFor maps aspect ratios onto the provider's rendering buckets.
func resolutionFor(aspectRatio string) string {
	switch aspectRatio {
	case "16:9", "3:2", "4:3":
		return "1792x1024"
	case "9:16", "2:3", "3:4":
		return "1024x1792"
	default:
		return "1024x1024"
	}
}

func (s *TaskService) complete(ctx context.Context, task *postgres.Task, imageURL string) {
	now := time.Now()
	progress := 100
	affected, err := s.taskRepo.UpdateFieldsWithStatus(ctx, task.TaskID,
		[]string{string(model.TaskStatusPending), string(model.TaskStatusProcessing)},
		map[string]interface{}{
			"status":              string(model.TaskStatusCompleted),
			"result_url":          imageURL,
			"error_message":       "",
			"progress_percentage": progress,
			"current_stage":       "done",
			"completed_at":        now,
		})
	if err != nil {
		logger.ErrorCtx(ctx, "failed to complete task, task_id: %s, error: %v", task.TaskID, err)
		return
	}
	if affected == 0 {
		// Cancelled while the gateway call was in flight; the result is
		// dropped and the cancel path owns the refund.
		logger.InfoCtx(ctx, "task finished elsewhere, discarding result, task_id: %s", task.TaskID)
		return
	}

	if err := s.historyRepo.Create(ctx, &postgres.HistoryRecord{
		UserID:    task.UserID,
		ImageURL:  imageURL,
		Prompt:    task.Prompt,
		Style:     task.Style,
		ModelUsed: s.completer.Model(),
	}); err != nil {
		logger.WarnCtx(ctx, "failed to record history, task_id: %s, error: %v", task.TaskID, err)
	}

	s.finishTerminal(ctx, task, model.TaskStatusCompleted, imageURL, "")
	logger.InfoCtx(ctx, "task completed, task_id: %s, attempts: %d", task.TaskID, task.AttemptCount)
}

func (s *TaskService) fail(ctx context.Context, task *postgres.Task, cause error) {
	affected, err := s.taskRepo.UpdateFieldsWithStatus(ctx, task.TaskID,
		[]string{string(model.TaskStatusPending), string(model.TaskStatusProcessing)},
		map[string]interface{}{
			"status":        string(model.TaskStatusFailed),
			"error_message": cause.Error(),
			"current_stage": "failed",
		})
	if err != nil {
		logger.ErrorCtx(ctx, "failed to mark task failed, task_id: %s, error: %v", task.TaskID, err)
		return
	}
	if affected == 0 {
		logger.InfoCtx(ctx, "task finished elsewhere, task_id: %s", task.TaskID)
		return
	}

	// Refund is best effort; a lost refund is favored over a double one.
	if err := s.creditRepo.Add(ctx, task.UserID, generationCost); err != nil {
		logger.ErrorCtx(ctx, "failed to refund credits, task_id: %s, user_id: %s, error: %v", task.TaskID, task.UserID, err)
	}

	s.finishTerminal(ctx, task, model.TaskStatusFailed, "", cause.Error())
	logger.WarnCtx(ctx, "task failed, task_id: %s, attempts: %d, error: %v", task.TaskID, task.AttemptCount, cause)
}

// finishTerminal fans the terminal transition out to the registry, the
// event channel and the webhook. All best effort.
func (s *TaskService) finishTerminal(ctx context.Context, task *postgres.Task, status model.TaskStatus, imageURL, errMsg string) {
	fingerprint := tasksync.Fingerprint(task.Prompt, task.ImageBase64, task.Style, task.AspectRatio)
	if err := s.registry.MarkTerminal(ctx, fingerprint); err != nil {
		logger.WarnCtx(ctx, "failed to clear in-flight entry, task_id: %s, error: %v", task.TaskID, err)
	}
	if err := s.broadcaster.Publish(ctx, tasksync.TaskEvent{
		TaskID:   task.TaskID,
		Status:   string(status),
		ImageURL: imageURL,
		Error:    errMsg,
	}); err != nil {
		logger.WarnCtx(ctx, "failed to publish task event, task_id: %s, error: %v", task.TaskID, err)
	}
	s.notifier.Notify(ctx, notify.Event{
		TaskID:   task.TaskID,
		UserID:   task.UserID,
		Status:   string(status),
		ImageURL: imageURL,
		Error:    errMsg,
	})
}

func (s *TaskService) recordAttemptError(ctx context.Context, taskID string, cause error) {
	if err := s.taskRepo.UpdateFields(ctx, taskID, map[string]interface{}{
		"error_message": cause.Error(),
	}); err != nil {
		logger.WarnCtx(ctx, "failed to record attempt error, task_id: %s, error: %v", taskID, err)
	}
}

func (s *TaskService) backoff(ctx context.Context, attempt int) {
	wait := s.backoffBase * time.Duration(attempt)
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// Cancel moves a non-terminal task to cancelled and refunds its credit.
// Cancelling an already finished task is a no-op that reports the existing
// state rather than an error.
func (s *TaskService) Cancel(ctx context.Context, userID, taskID string) (*model.CancelResponse, error) {
	task, err := s.taskRepo.GetForUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, model.ErrTaskNotFound
	}

	if model.TaskStatus(task.Status).Terminal() {
		return &model.CancelResponse{
			Success:         false,
			Status:          model.TaskStatus(task.Status),
			CreditsRefunded: false,
		}, nil
	}

	affected, err := s.taskRepo.UpdateFieldsWithStatus(ctx, taskID,
		[]string{string(model.TaskStatusPending), string(model.TaskStatusProcessing)},
		map[string]interface{}{
			"status":        string(model.TaskStatusCancelled),
			"current_stage": "cancelled",
		})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race to a completion or failure.
		fresh, err := s.taskRepo.Get(ctx, taskID)
		if err != nil || fresh == nil {
			return nil, model.ErrTaskNotFound
		}
		return &model.CancelResponse{
			Success:         false,
			Status:          model.TaskStatus(fresh.Status),
			CreditsRefunded: false,
		}, nil
	}

	if err := s.creditRepo.Add(ctx, userID, generationCost); err != nil {
		logger.ErrorCtx(ctx, "failed to refund cancelled task, task_id: %s, error: %v", taskID, err)
	}

	s.finishTerminal(ctx, task, model.TaskStatusCancelled, "", "cancelled by user")
	logger.InfoCtx(ctx, "task cancelled, task_id: %s, user_id: %s", taskID, userID)
	return &model.CancelResponse{
		Success:         true,
		Status:          model.TaskStatusCancelled,
		CreditsRefunded: true,
	}, nil
}

// List returns a page of the caller's tasks, newest first. Reference-image
// payloads are stripped; they are far too heavy for a list view.
func (s *TaskService) List(ctx context.Context, userID string, limit, offset int) ([]*model.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.taskRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	tasks := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		t := postgres.ToTaskDomain(row)
		t.ImageBase64 = ""
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Status returns the caller-visible view of a task. internalScope skips the
// ownership check for trusted service-to-service reads.
func (s *TaskService) Status(ctx context.Context, userID, taskID string, internalScope bool) (*model.TaskStatusResponse, error) {
	var task *postgres.Task
	var err error
	if internalScope {
		task, err = s.taskRepo.Get(ctx, taskID)
	} else {
		task, err = s.taskRepo.GetForUser(ctx, taskID, userID)
	}
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, model.ErrTaskNotFound
	}

	resp := &model.TaskStatusResponse{
		TaskID:    task.TaskID,
		Status:    model.TaskStatus(task.Status),
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
		WaitTime:  int64(time.Since(task.CreatedAt).Seconds()),
		Progress:  task.Progress,
		Stage:     task.CurrentStage,
	}
	if task.ResultURL != "" {
		resp.ImageURL = &task.ResultURL
	}
	if model.TaskStatus(task.Status) == model.TaskStatusFailed && task.ErrorMessage != "" {
		resp.Error = &task.ErrorMessage
	}
	return resp, nil
}

// decodeImage validates an optional data-URI (or raw base64) reference
// image and returns it in data-URI form for the multimodal gateway turn.
func (s *TaskService) decodeImage(image string) (string, error) {
	if image == "" {
		return "", nil
	}

	payload := image
	mime := ""
	if strings.HasPrefix(image, "data:") {
		comma := strings.Index(image, ",")
		header := ""
		if comma >= 0 {
			header = image[:comma]
			payload = image[comma+1:]
		}
		if !strings.Contains(header, ";base64") {
			return "", model.ErrInvalidImage
		}
		mime = strings.TrimPrefix(strings.SplitN(strings.TrimPrefix(header, "data:"), ";", 2)[0], " ")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", model.ErrInvalidImage
	}

	maxBytes := s.taskCfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if len(raw) > maxBytes {
		return "", model.ErrImageTooLarge
	}

	sniffed := sniffImageMIME(raw)
	if sniffed == "" {
		return "", model.ErrInvalidImage
	}
	if mime == "" {
		mime = sniffed
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, payload), nil
}

// sniffImageMIME recognizes the supported image formats by magic bytes.
func sniffImageMIME(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case len(data) >= 3 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F':
		return "image/gif"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	default:
		return ""
	}
}

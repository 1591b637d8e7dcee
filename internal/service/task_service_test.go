package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgtutu/internal/model"
	"imgtutu/pkg/config"
	"imgtutu/pkg/extract"
	"imgtutu/pkg/tasksync"
)

type taskServiceFixture struct {
	svc       *TaskService
	taskRepo  *fakeTaskRepo
	credits   *fakeCreditRepo
	history   *fakeHistoryRepo
	completer *fakeCompleter
	notifier  *fakeNotifier
}

func newTaskServiceFixture(t *testing.T, responses []completerResponse, redisClient *redis.Client) *taskServiceFixture {
	t.Helper()

	f := &taskServiceFixture{
		taskRepo:  newFakeTaskRepo(),
		credits:   newFakeCreditRepo(),
		history:   newFakeHistoryRepo(),
		completer: &fakeCompleter{responses: responses},
		notifier:  &fakeNotifier{},
	}

	f.svc = NewTaskService(
		f.taskRepo,
		f.credits,
		f.history,
		f.completer,
		extract.New(""),
		tasksync.NewRegistry(redisClient),
		tasksync.NewBroadcaster(redisClient),
		f.notifier,
		redisClient,
		config.GatewayConfig{MaxRetries: 3, TimeoutSeconds: 5},
		config.TaskConfig{DefaultCredits: 5, MaxImageBytes: 1 << 20},
	)
	// Dispatch is driven explicitly in tests.
	f.svc.startDispatch = func(string) {}
	f.svc.backoffBase = time.Millisecond
	return f
}

func TestCreate_DebitsAndInsertsPending(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "a red apple"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, model.TaskStatusPending, resp.Status)

	// One debit against the freshly seeded default balance.
	assert.Equal(t, int64(4), f.credits.balance("user-1"))

	task, err := f.taskRepo.Get(ctx, resp.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "pending", task.Status)
	assert.Equal(t, "a red apple", task.Prompt)
	assert.Equal(t, 0, task.AttemptCount)
}

func TestCreate_EmptyPromptRejected(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)

	_, err := f.svc.Create(context.Background(), "user-1", &model.GenerateRequest{Prompt: "   "})
	assert.ErrorIs(t, err, model.ErrPromptRequired)
	// No row seeded, no debit.
	assert.Equal(t, int64(0), f.credits.balance("user-1"))
}

func TestCreate_InsufficientCredits(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.credits.EnsureRow(ctx, "broke", 0))

	_, err := f.svc.Create(ctx, "broke", &model.GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)
}

func TestCreate_ImageValidation(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	// Garbage base64 is rejected before any debit.
	_, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "x", Image: "!!not-base64!!"})
	assert.ErrorIs(t, err, model.ErrInvalidImage)
	assert.Equal(t, int64(0), f.credits.balance("user-1"))

	// Valid bytes but not a known image format.
	notImage := base64.StdEncoding.EncodeToString([]byte("plain text payload"))
	_, err = f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "x", Image: notImage})
	assert.ErrorIs(t, err, model.ErrInvalidImage)

	// A tiny valid PNG header passes and gets a sniffed MIME type.
	png := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "x", Image: png})
	require.NoError(t, err)

	task, _ := f.taskRepo.Get(ctx, resp.TaskID)
	assert.Contains(t, task.ImageBase64, "data:image/png;base64,")
}

func TestCreate_ImageOnlySubmissionAccepted(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	// No prompt at all: the reference image alone is a valid request.
	png := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Image: png})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, resp.Status)
	assert.Equal(t, int64(4), f.credits.balance("user-1"))

	task, _ := f.taskRepo.Get(ctx, resp.TaskID)
	require.NotNil(t, task)
	assert.Contains(t, task.ImageBase64, "data:image/png;base64,")
}

func TestCreate_ImageTooLarge(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	f.svc.taskCfg.MaxImageBytes = 4

	big := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02})
	_, err := f.svc.Create(context.Background(), "user-1", &model.GenerateRequest{Prompt: "x", Image: big})
	assert.ErrorIs(t, err, model.ErrImageTooLarge)
}

func TestDispatch_FirstAttemptSuccess(t *testing.T) {
	f := newTaskServiceFixture(t, []completerResponse{
		{content: "![result](https://files.example.com/out.png)"},
	}, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "a red apple"})
	require.NoError(t, err)

	f.svc.Dispatch(ctx, resp.TaskID)

	task, _ := f.taskRepo.Get(ctx, resp.TaskID)
	assert.Equal(t, "completed", task.Status)
	assert.Equal(t, "https://files.example.com/out.png", task.ResultURL)
	assert.Equal(t, 1, task.AttemptCount)
	require.NotNil(t, task.CompletedAt)

	// History row inserted, no refund on success.
	assert.Equal(t, 1, f.history.count())
	assert.Equal(t, int64(4), f.credits.balance("user-1"))

	event := f.notifier.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, "completed", event.Status)
	assert.Equal(t, "https://files.example.com/out.png", event.ImageURL)
}

func TestDispatch_RefusalExhaustsRetriesAndRefunds(t *testing.T) {
	f := newTaskServiceFixture(t, []completerResponse{
		{content: "I'm sorry, I can't create that image."},
	}, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "something"})
	require.NoError(t, err)
	require.Equal(t, int64(4), f.credits.balance("user-1"))

	f.svc.Dispatch(ctx, resp.TaskID)

	task, _ := f.taskRepo.Get(ctx, resp.TaskID)
	assert.Equal(t, "failed", task.Status)
	assert.NotEmpty(t, task.ErrorMessage)
	assert.Equal(t, 3, task.AttemptCount, "retry bound is the configured attempt count")

	// Compensating refund restores the balance.
	assert.Equal(t, int64(5), f.credits.balance("user-1"))
	assert.Equal(t, 0, f.history.count())
}

func TestDispatch_SecondAttemptRecovers(t *testing.T) {
	f := newTaskServiceFixture(t, []completerResponse{
		{content: "no url in this one"},
		{content: "here you go https://files.example.com/two.jpg done"},
	}, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)

	f.svc.Dispatch(ctx, resp.TaskID)

	task, _ := f.taskRepo.Get(ctx, resp.TaskID)
	assert.Equal(t, "completed", task.Status)
	assert.Equal(t, "https://files.example.com/two.jpg", task.ResultURL)
	assert.Equal(t, 2, task.AttemptCount)
}

func TestDispatch_TerminalTaskIsNoOp(t *testing.T) {
	f := newTaskServiceFixture(t, []completerResponse{
		{content: "![r](https://files.example.com/out.png)"},
	}, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	f.svc.Dispatch(ctx, resp.TaskID)

	before, _ := f.taskRepo.Get(ctx, resp.TaskID)
	calls := f.completer.callCount()

	// Dispatch on a completed task must not claim it again.
	f.svc.Dispatch(ctx, resp.TaskID)

	after, _ := f.taskRepo.Get(ctx, resp.TaskID)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.ResultURL, after.ResultURL)
	assert.Equal(t, before.AttemptCount, after.AttemptCount)
	assert.Equal(t, calls, f.completer.callCount())
}

func TestCancel_PendingTaskRefunds(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, int64(4), f.credits.balance("user-1"))

	cancelResp, err := f.svc.Cancel(ctx, "user-1", resp.TaskID)
	require.NoError(t, err)
	assert.True(t, cancelResp.Success)
	assert.True(t, cancelResp.CreditsRefunded)
	assert.Equal(t, model.TaskStatusCancelled, cancelResp.Status)
	assert.Equal(t, int64(5), f.credits.balance("user-1"))
}

func TestCancel_CompletedTaskIsNoOp(t *testing.T) {
	f := newTaskServiceFixture(t, []completerResponse{
		{content: "![r](https://files.example.com/out.png)"},
	}, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	f.svc.Dispatch(ctx, resp.TaskID)

	cancelResp, err := f.svc.Cancel(ctx, "user-1", resp.TaskID)
	require.NoError(t, err)
	assert.False(t, cancelResp.Success)
	assert.False(t, cancelResp.CreditsRefunded)
	assert.Equal(t, model.TaskStatusCompleted, cancelResp.Status)

	// No refund, result untouched.
	assert.Equal(t, int64(4), f.credits.balance("user-1"))
	task, _ := f.taskRepo.Get(ctx, resp.TaskID)
	assert.Equal(t, "https://files.example.com/out.png", task.ResultURL)
}

func TestCancel_WrongUserNotFound(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "someone-else", resp.TaskID)
	assert.ErrorIs(t, err, model.ErrTaskNotFound)
}

func TestStatus_OwnershipAndInternalScope(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)

	status, err := f.svc.Status(ctx, "user-1", resp.TaskID, false)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, status.Status)
	assert.Nil(t, status.ImageURL)
	assert.Nil(t, status.Error)
	assert.GreaterOrEqual(t, status.WaitTime, int64(0))

	// Another user cannot see it.
	_, err = f.svc.Status(ctx, "user-2", resp.TaskID, false)
	assert.ErrorIs(t, err, model.ErrTaskNotFound)

	// Internal scope can.
	status, err = f.svc.Status(ctx, "user-2", resp.TaskID, true)
	require.NoError(t, err)
	assert.Equal(t, resp.TaskID, status.TaskID)
}

func TestCreate_DuplicateSubmissionResumesFirstTask(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	f := newTaskServiceFixture(t, nil, redisClient)
	ctx := context.Background()

	req := &model.GenerateRequest{Prompt: "identical prompt", Style: "photo"}
	first, err := f.svc.Create(ctx, "user-1", req)
	require.NoError(t, err)
	require.Equal(t, int64(4), f.credits.balance("user-1"))

	// Same fingerprint inside the dedup window resumes the first task:
	// no second debit, no second row.
	second, err := f.svc.Create(ctx, "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, first.TaskID, second.TaskID)
	assert.Equal(t, int64(4), f.credits.balance("user-1"))

	n, _ := f.taskRepo.CountByStatus(ctx, "pending")
	assert.Equal(t, int64(1), n)

	// A different request is not deduplicated.
	third, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "different prompt"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TaskID, third.TaskID)
}

func TestDispatch_TerminalClearsRegistryEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	f := newTaskServiceFixture(t, []completerResponse{
		{content: "![r](https://files.example.com/out.png)"},
	}, redisClient)
	ctx := context.Background()

	req := &model.GenerateRequest{Prompt: "p"}
	first, err := f.svc.Create(ctx, "user-1", req)
	require.NoError(t, err)
	f.svc.Dispatch(ctx, first.TaskID)

	// After the terminal transition the same request makes a new task.
	second, err := f.svc.Create(ctx, "user-1", req)
	require.NoError(t, err)
	assert.NotEqual(t, first.TaskID, second.TaskID)
}

func TestResolutionBuckets(t *testing.T) {
	assert.Equal(t, "1792x1024", resolutionFor("16:9"))
	assert.Equal(t, "1024x1792", resolutionFor("9:16"))
	assert.Equal(t, "1024x1024", resolutionFor("1:1"))
	assert.Equal(t, "1024x1024", resolutionFor(""))
}

func TestList_OwnerScopedAndImageStripped(t *testing.T) {
	f := newTaskServiceFixture(t, nil, nil)
	ctx := context.Background()

	png := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	_, err := f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "first", Image: png})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "user-1", &model.GenerateRequest{Prompt: "second"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "user-2", &model.GenerateRequest{Prompt: "other"})
	require.NoError(t, err)

	tasks, err := f.svc.List(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, model.TaskStatusPending, task.Status)
		assert.Empty(t, task.ImageBase64, "reference images are not returned in list views")
	}

	tasks, err = f.svc.List(ctx, "user-2", 10, 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSniffImageMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", sniffImageMIME([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, "image/png", sniffImageMIME([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D}))
	assert.Equal(t, "image/gif", sniffImageMIME([]byte("GIF89a")))
	assert.Equal(t, "image/webp", sniffImageMIME([]byte("RIFF0000WEBPVP8 ")))
	assert.Empty(t, sniffImageMIME([]byte("not an image")))
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"imgtutu/pkg/gateway"
	"imgtutu/pkg/notify"
	"imgtutu/pkg/store/postgres"
)

// fakeTaskRepo is an in-memory TaskRepository.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*postgres.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*postgres.Task)}
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *postgres.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	cp := *task
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	f.tasks[task.TaskID] = &cp
	return nil
}

func (f *fakeTaskRepo) Get(ctx context.Context, taskID string) (*postgres.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (f *fakeTaskRepo) GetForUser(ctx context.Context, taskID, userID string) (*postgres.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (f *fakeTaskRepo) UpdateFields(ctx context.Context, taskID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found")
	}
	applyTaskUpdates(task, updates)
	return nil
}

func (f *fakeTaskRepo) UpdateFieldsWithStatus(ctx context.Context, taskID string, expectedStatuses []string, updates map[string]interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return 0, nil
	}
	matched := false
	for _, s := range expectedStatuses {
		if task.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}
	applyTaskUpdates(task, updates)
	return 1, nil
}

func (f *fakeTaskRepo) IncrementAttempt(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found")
	}
	task.AttemptCount++
	return nil
}

func (f *fakeTaskRepo) GetStaleTasks(ctx context.Context, cutoff time.Time, limit int) ([]*postgres.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*postgres.Task
	for _, task := range f.tasks {
		if (task.Status == "pending" || task.Status == "processing") && task.CreatedAt.Before(cutoff) {
			cp := *task
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) GetRetryableTasks(ctx context.Context, since time.Time, maxAttempts, limit int) ([]*postgres.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*postgres.Task
	for _, task := range f.tasks {
		if task.Status == "pending" && task.AttemptCount < maxAttempts && !task.CreatedAt.Before(since) {
			cp := *task
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*postgres.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*postgres.Task
	for _, task := range f.tasks {
		if task.UserID == userID {
			cp := *task
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, task := range f.tasks {
		if task.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeTaskRepo) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func applyTaskUpdates(task *postgres.Task, updates map[string]interface{}) {
	for column, value := range updates {
		switch column {
		case "status":
			task.Status = value.(string)
		case "result_url":
			task.ResultURL = value.(string)
		case "error_message":
			task.ErrorMessage = value.(string)
		case "current_stage":
			task.CurrentStage = value.(string)
		case "progress_percentage":
			p := value.(int)
			task.Progress = &p
		case "completed_at":
			t := value.(time.Time)
			task.CompletedAt = &t
		}
	}
	task.UpdatedAt = time.Now()
}

// fakeCreditRepo is an in-memory CreditRepository.
type fakeCreditRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	// deductErr forces the next Deduct to fail
	deductErr error
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{balances: make(map[string]int64)}
}

func (f *fakeCreditRepo) Get(ctx context.Context, userID string) (*postgres.CreditBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	credits, ok := f.balances[userID]
	if !ok {
		return nil, nil
	}
	return &postgres.CreditBalance{UserID: userID, Credits: credits, UpdatedAt: time.Now()}, nil
}

func (f *fakeCreditRepo) EnsureRow(ctx context.Context, userID string, initial int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = initial
	}
	return nil
}

func (f *fakeCreditRepo) Deduct(ctx context.Context, userID string, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deductErr != nil {
		return 0, f.deductErr
	}
	if f.balances[userID] < amount {
		return 0, nil
	}
	f.balances[userID] -= amount
	return 1, nil
}

func (f *fakeCreditRepo) Add(ctx context.Context, userID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Like the real repository, adding to a missing row is an error.
	if _, ok := f.balances[userID]; !ok {
		return fmt.Errorf("credit row not found: user_id=%s", userID)
	}
	f.balances[userID] += amount
	return nil
}

func (f *fakeCreditRepo) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeCreditRepo) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

// fakeHistoryRepo is an in-memory HistoryRepository.
type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*postgres.HistoryRecord
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (f *fakeHistoryRepo) Create(ctx context.Context, record *postgres.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	cp.ID = int64(len(f.records) + 1)
	cp.CreatedAt = time.Now()
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeHistoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*postgres.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*postgres.HistoryRecord
	skipped := 0
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *f.records[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeHistoryRepo) Delete(ctx context.Context, id int64, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id && r.UserID == userID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeHistoryRepo) ClearForUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*postgres.HistoryRecord
	var deleted int64
	for _, r := range f.records {
		if r.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeHistoryRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeOrderRepo is an in-memory OrderRepository.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*postgres.PaymentOrder
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*postgres.PaymentOrder)}
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *postgres.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.orders[order.OrderID] = &cp
	return nil
}

func (f *fakeOrderRepo) Get(ctx context.Context, orderID string) (*postgres.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderRepo) GetForUser(ctx context.Context, orderID, userID string) (*postgres.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderRepo) MarkPaid(ctx context.Context, orderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != "pending" {
		return 0, nil
	}
	order.Status = "paid"
	now := time.Now()
	order.PaidAt = &now
	order.UpdatedAt = now
	return 1, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found")
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return nil
}

func (f *fakeOrderRepo) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeCompleter scripts gateway responses per attempt.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []completerResponse
	calls     int
}

type completerResponse struct {
	content string
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []gateway.Message, opts gateway.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	if idx < 0 {
		return "", fmt.Errorf("no scripted response")
	}
	r := f.responses[idx]
	return r.content, r.err
}

func (f *fakeCompleter) Model() string {
	return "test-model"
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier records webhook events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Notify(ctx context.Context, event notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) lastEvent() *notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	e := f.events[len(f.events)-1]
	return &e
}

package service

import (
	"context"
	"time"

	"imgtutu/pkg/gateway"
	"imgtutu/pkg/notify"
	"imgtutu/pkg/payment"
	"imgtutu/pkg/store/postgres"
)

// TaskRepository persistence operations needed by the task and sweeper services
type TaskRepository interface {
	Create(ctx context.Context, task *postgres.Task) error
	Get(ctx context.Context, taskID string) (*postgres.Task, error)
	GetForUser(ctx context.Context, taskID, userID string) (*postgres.Task, error)
	UpdateFields(ctx context.Context, taskID string, updates map[string]interface{}) error
	UpdateFieldsWithStatus(ctx context.Context, taskID string, expectedStatuses []string, updates map[string]interface{}) (int64, error)
	IncrementAttempt(ctx context.Context, taskID string) error
	GetStaleTasks(ctx context.Context, cutoff time.Time, limit int) ([]*postgres.Task, error)
	GetRetryableTasks(ctx context.Context, since time.Time, maxAttempts, limit int) ([]*postgres.Task, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*postgres.Task, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreditRepository persistence operations on user credit balances
type CreditRepository interface {
	Get(ctx context.Context, userID string) (*postgres.CreditBalance, error)
	EnsureRow(ctx context.Context, userID string, initial int64) error
	Deduct(ctx context.Context, userID string, amount int64) (int64, error)
	Add(ctx context.Context, userID string, amount int64) error
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// HistoryRepository persistence operations on the generation history
type HistoryRepository interface {
	Create(ctx context.Context, record *postgres.HistoryRecord) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*postgres.HistoryRecord, error)
	Delete(ctx context.Context, id int64, userID string) (int64, error)
	ClearForUser(ctx context.Context, userID string) (int64, error)
}

// OrderRepository persistence operations on payment orders
type OrderRepository interface {
	Create(ctx context.Context, order *postgres.PaymentOrder) error
	Get(ctx context.Context, orderID string) (*postgres.PaymentOrder, error)
	GetForUser(ctx context.Context, orderID, userID string) (*postgres.PaymentOrder, error)
	MarkPaid(ctx context.Context, orderID string) (int64, error)
	UpdateStatus(ctx context.Context, orderID, status string) error
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Completer issues chat completions against the model gateway.
type Completer interface {
	Complete(ctx context.Context, messages []gateway.Message, opts gateway.Options) (string, error)
	Model() string
}

// PaymentGateway creates and queries orders on the external payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, orderID string, amountFen int64, subject string) (*payment.CreateOrderResult, error)
	QueryOrder(ctx context.Context, orderID string) (payment.OrderState, error)
}

// Notifier delivers best-effort webhook notifications.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event)
}

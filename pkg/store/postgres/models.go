package postgres

import "imgtutu/pkg/store/postgres/model"

// Re-export types from model package so callers can use postgres.Task etc.

type (
	Task          = model.Task
	CreditBalance = model.CreditBalance
	HistoryRecord = model.HistoryRecord
	PaymentOrder  = model.PaymentOrder
)

package model

import "errors"

// Domain sentinel errors. Handlers map these to HTTP status codes and
// structured JSON bodies.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskFinished        = errors.New("task already finished")
	ErrPromptRequired      = errors.New("prompt or image required")
	ErrImageTooLarge       = errors.New("input image too large")
	ErrInvalidImage        = errors.New("invalid input image")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateSubmission = errors.New("duplicate submission in flight")
	ErrInvalidCreditAmount = errors.New("credit amount must be positive")
	ErrInvalidCreditAction = errors.New("unknown credit action")
	ErrUnknownPlan         = errors.New("unknown top-up plan")
	ErrHistoryNotFound     = errors.New("history record not found")
)

package model

// CreditAction credit mutation action
type CreditAction string

const (
	CreditActionDeduct CreditAction = "deduct"
	CreditActionAdd    CreditAction = "add"
)

// CreditUpdateRequest internal credit mutation request
type CreditUpdateRequest struct {
	UserID string       `json:"userId" binding:"required"`
	Action CreditAction `json:"action" binding:"required"`
	Amount int64        `json:"amount" binding:"required"`
}

// CreditsResponse credit balance response
type CreditsResponse struct {
	UserID  string `json:"userId"`
	Credits int64  `json:"credits"`
}

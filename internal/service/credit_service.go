package service

import (
	"context"

	"imgtutu/internal/model"
	"imgtutu/pkg/logger"
)

// CreditService reads and adjusts user credit balances.
type CreditService struct {
	creditRepo     CreditRepository
	defaultCredits int64
}

// NewCreditService creates a credit service.
func NewCreditService(creditRepo CreditRepository, defaultCredits int64) *CreditService {
	return &CreditService{creditRepo: creditRepo, defaultCredits: defaultCredits}
}

// Balance returns the user's balance, seeding the row with the default
// grant on first sight.
func (s *CreditService) Balance(ctx context.Context, userID string) (*model.CreditsResponse, error) {
	if err := s.creditRepo.EnsureRow(ctx, userID, s.defaultCredits); err != nil {
		return nil, err
	}
	balance, err := s.creditRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return &model.CreditsResponse{UserID: userID, Credits: 0}, nil
	}
	return &model.CreditsResponse{UserID: userID, Credits: balance.Credits}, nil
}

// Update applies a deduct or add action and returns the new balance.
func (s *CreditService) Update(ctx context.Context, userID string, req *model.CreditUpdateRequest) (*model.CreditsResponse, error) {
	if req.Amount <= 0 {
		return nil, model.ErrInvalidCreditAmount
	}

	err := s.creditRepo.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.creditRepo.EnsureRow(txCtx, userID, s.defaultCredits); err != nil {
			return err
		}
		switch req.Action {
		case model.CreditActionDeduct:
			affected, err := s.creditRepo.Deduct(txCtx, userID, req.Amount)
			if err != nil {
				return err
			}
			if affected == 0 {
				return model.ErrInsufficientCredits
			}
			return nil
		case model.CreditActionAdd:
			return s.creditRepo.Add(txCtx, userID, req.Amount)
		default:
			return model.ErrInvalidCreditAction
		}
	})
	if err != nil {
		return nil, err
	}

	balance, err := s.creditRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "credits updated, user_id: %s, action: %s, amount: %d", userID, req.Action, req.Amount)
	return &model.CreditsResponse{UserID: userID, Credits: balance.Credits}, nil
}

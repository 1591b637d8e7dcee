package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"imgtutu/internal/model"
	"imgtutu/pkg/logger"
	"imgtutu/pkg/payment"
	"imgtutu/pkg/store/postgres"
)

// PaymentService handles credit top-ups: order creation against the
// external gateway and the poll-driven settlement that grants credits.
type PaymentService struct {
	orderRepo  OrderRepository
	creditRepo CreditRepository
	gateway    PaymentGateway
}

// NewPaymentService creates a payment service.
func NewPaymentService(orderRepo OrderRepository, creditRepo CreditRepository, gw PaymentGateway) *PaymentService {
	return &PaymentService{orderRepo: orderRepo, creditRepo: creditRepo, gateway: gw}
}

// CreateOrder registers a top-up order for a known plan and returns the
// gateway's pay URL.
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, req *model.CreateOrderRequest) (*model.CreateOrderResponse, error) {
	plan, ok := model.TopUpPlans[req.Plan]
	if !ok {
		return nil, model.ErrUnknownPlan
	}

	orderID := uuid.New().String()
	subject := fmt.Sprintf("%d credits (%s)", plan.Credits, plan.Name)
	created, err := s.gateway.CreateOrder(ctx, orderID, plan.AmountFen, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	order := &postgres.PaymentOrder{
		OrderID:   orderID,
		UserID:    userID,
		Plan:      plan.Name,
		Credits:   plan.Credits,
		AmountFen: plan.AmountFen,
		Status:    string(model.OrderStatusPending),
		PayURL:    created.PayURL,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "payment order created, order_id: %s, user_id: %s, plan: %s", orderID, userID, plan.Name)
	return &model.CreateOrderResponse{
		OrderID: orderID,
		PayURL:  created.PayURL,
		Credits: plan.Credits,
	}, nil
}

// OrderStatus reconciles one order against the gateway and, exactly once,
// grants the credits when it settles. The pending->paid CAS makes the grant
// idempotent under concurrent polls.
func (s *PaymentService) OrderStatus(ctx context.Context, userID, orderID string) (*model.OrderStatusResponse, error) {
	order, err := s.orderRepo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	status := model.OrderStatus(order.Status)
	if status != model.OrderStatusPending {
		return &model.OrderStatusResponse{
			OrderID: orderID,
			Status:  status,
			Credits: order.Credits,
		}, nil
	}

	state, err := s.gateway.QueryOrder(ctx, orderID)
	if err != nil {
		// Gateway unreachable: report the stored state, a later poll
		// reconciles.
		logger.WarnCtx(ctx, "failed to query payment gateway, order_id: %s, error: %v", orderID, err)
		return &model.OrderStatusResponse{OrderID: orderID, Status: status, Credits: order.Credits}, nil
	}

	switch state {
	case payment.StatePaid:
		// Mark-paid and grant run in one transaction: a failed grant rolls
		// the order back to pending so a later poll settles it.
		granted := false
		err := s.orderRepo.ExecTx(ctx, func(txCtx context.Context) error {
			affected, err := s.orderRepo.MarkPaid(txCtx, orderID)
			if err != nil {
				return err
			}
			if affected == 0 {
				return nil
			}
			// The buyer may never have generated; seed an empty balance row
			// so the grant has something to land on.
			if err := s.creditRepo.EnsureRow(txCtx, userID, 0); err != nil {
				return err
			}
			if err := s.creditRepo.Add(txCtx, userID, order.Credits); err != nil {
				return err
			}
			granted = true
			return nil
		})
		if err != nil {
			logger.ErrorCtx(ctx, "failed to settle order, order_id: %s, user_id: %s, error: %v", orderID, userID, err)
			return nil, err
		}
		if granted {
			logger.InfoCtx(ctx, "order settled, order_id: %s, user_id: %s, credits: %d", orderID, userID, order.Credits)
		}
		return &model.OrderStatusResponse{
			OrderID:      orderID,
			Status:       model.OrderStatusPaid,
			Credits:      order.Credits,
			CreditsAdded: granted,
		}, nil

	case payment.StateFailed, payment.StateExpired:
		if err := s.orderRepo.UpdateStatus(ctx, orderID, string(state)); err != nil {
			logger.WarnCtx(ctx, "failed to record order state, order_id: %s, error: %v", orderID, err)
		}
		return &model.OrderStatusResponse{OrderID: orderID, Status: model.OrderStatus(state), Credits: order.Credits}, nil

	default:
		return &model.OrderStatusResponse{OrderID: orderID, Status: model.OrderStatusPending, Credits: order.Credits}, nil
	}
}

package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/store"
)

func (s *Service) configured() error {
	if s.repo == nil {
		return apperr.New(apperr.CodeConfiguration, "order storage is not configured")
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "order not found").WithDetail("order_id", id.String())
		}
		return nil, apperr.Persistence("get_order", err)
	}
	return order, nil
}

// ListUserOrders pages a user's orders newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "invalid cursor")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page, err := s.repo.ListUserOrders(ctx, userID, cursor, limit)
	if err != nil {
		return nil, apperr.Persistence("list_user_orders", err)
	}
	return page, nil
}

func (s *Service) ListOrders(ctx context.Context, status *models.OrderStatus, page, pageSize int) (*store.OffsetPage[models.Order], error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, apperr.New(apperr.CodeValidation, "unknown order status").WithDetail("status", string(*status))
	}
	result, err := s.repo.ListOrders(ctx, status, page, pageSize)
	if err != nil {
		return nil, apperr.Persistence("list_orders", err)
	}
	return result, nil
}

// UpdateOrderStatus moves an order one step through the kitchen pipeline or
// cancels it. Terminal orders never change.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, apperr.New(apperr.CodeValidation, "unknown order status").WithDetail("status", string(status))
	}
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, apperr.New(apperr.CodeStateConflict, "illegal status transition").
			WithDetail("from", string(order.Status)).
			WithDetail("to", string(status))
	}

	if err := s.repo.UpdateOrderStatus(ctx, id, status, order.Version); err != nil {
		if errors.Is(err, database.ErrOptimisticLockFailed) {
			return nil, apperr.Wrap(apperr.CodeStateConflict, err, "order was modified concurrently")
		}
		return nil, apperr.Persistence("update_order_status", err)
	}

	order.Status = status
	order.Version++
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"status":       string(status),
	}), "order status updated")
	return order, nil
}

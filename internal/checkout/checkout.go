// Package checkout turns a cart into a persisted order and settles the
// purchaser's loyalty balance in the same transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/cart"
	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/lock"
	"github.com/safar/osushi-store/internal/logger"
	"github.com/safar/osushi-store/internal/loyalty"
	"github.com/safar/osushi-store/internal/metrics"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/validate"
)

// Persistence steps reported on PERSISTENCE_ERROR.
const (
	StepAcquireLock       = "acquire_lock"
	StepInsertOrder       = "insert_order"
	StepInsertOrderItems  = "insert_order_items"
	StepReadBalance       = "read_balance"
	StepUpdateBalance     = "update_balance"
	StepInsertTransaction = "insert_loyalty_transaction"
	StepCommit            = "commit"
)

type CustomerInfo struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,min=6,max=30"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// Request carries everything besides the cart needed to place an order.
// A nil UserID places a guest order.
type Request struct {
	UserID              *uuid.UUID       `json:"-"`
	Customer            CustomerInfo     `json:"customer" validate:"required"`
	OrderType           models.OrderType `json:"order_type" validate:"required,oneof=dine_in takeaway delivery"`
	DeliveryAddress     string           `json:"delivery_address" validate:"required_if=OrderType delivery,max=500"`
	ScheduledTime       *time.Time       `json:"scheduled_time"`
	SpecialInstructions string           `json:"special_instructions" validate:"max=1000"`
}

type Config struct {
	OrderNumberAttempts int
}

type Service struct {
	repo    Repository
	locker  lock.Locker
	metrics *metrics.Store
	logg    *logger.Logger
	cfg     Config

	now    func() time.Time
	suffix func() int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSuffix overrides the random 3-digit order number suffix source.
func WithSuffix(fn func() int) Option {
	return func(s *Service) { s.suffix = fn }
}

func WithMetrics(m *metrics.Store) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the order service. repo may be nil when no database is
// configured; write paths then fail with CONFIGURATION_ERROR.
func NewService(repo Repository, locker lock.Locker, logg *logger.Logger, cfg Config, opts ...Option) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	if cfg.OrderNumberAttempts < 1 {
		cfg.OrderNumberAttempts = 1
	}
	s := &Service{
		repo:   repo,
		locker: locker,
		logg:   logg,
		cfg:    cfg,
		now:    time.Now,
		suffix: func() int { return rand.IntN(1000) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderNumber formats OS + YYMMDD + a zero-padded 3-digit suffix.
func OrderNumber(t time.Time, suffix int) string {
	return fmt.Sprintf("OS%s%03d", t.Format("060102"), suffix%1000)
}

// stepError tags a failure inside the finalization transaction with the step
// that produced it.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func atStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return &stepError{step: step, err: err}
}

// CreateOrder finalizes the cart held by carts. The cart is cleared only after
// the order is committed; any failure leaves it untouched.
func (s *Service) CreateOrder(ctx context.Context, carts *cart.Store, req Request) (*models.Order, error) {
	start := s.now()
	order, err := s.createOrder(ctx, carts, req)

	outcome := "success"
	if err != nil {
		outcome = string(apperr.CodeInternal)
		if e := apperr.As(err); e != nil {
			outcome = string(e.Code())
		}
	}
	s.metrics.ObserveCheckout(string(req.OrderType), outcome, s.now().Sub(start))
	return order, err
}

func (s *Service) createOrder(ctx context.Context, carts *cart.Store, req Request) (*models.Order, error) {
	if s.repo == nil {
		return nil, apperr.New(apperr.CodeConfiguration, "order storage is not configured")
	}
	if req.UserID != nil {
		ctx = s.logg.WithUserID(ctx, req.UserID.String())
	}

	// The cart lock is always held so two checkouts of one cart cannot both
	// read it before either clears it. The user lock serializes the balance.
	keys := []string{"checkout:cart:" + carts.Key()}
	if req.UserID != nil {
		keys = append(keys, "checkout:user:"+req.UserID.String())
	}
	for _, key := range keys {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logg.Error(ctx, "release checkout lock", err)
			}
		}()
	}

	c, err := carts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate(c, req); err != nil {
		return nil, err
	}

	order := s.draft(c, req)
	items := orderItems(c)

	var settlement loyalty.Settlement
	for attempt := 1; ; attempt++ {
		order.OrderNumber = OrderNumber(s.now(), s.suffix())
		settlement, err = s.persist(ctx, order, items)
		if err == nil {
			break
		}
		if database.IsOrderNumberTaken(err) && attempt < s.cfg.OrderNumberAttempts {
			s.logg.Warn(s.logg.WithField(ctx, "order_number", order.OrderNumber), "order number taken, regenerating")
			continue
		}
		err = s.translate(err)
		s.logg.Error(s.logg.WithField(ctx, "step", apperr.As(err).Step()), "checkout failed", err)
		return nil, err
	}
	order.Items = items

	if _, err := carts.Clear(ctx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "order_number", order.OrderNumber), "clear cart after checkout", err)
	}

	if !order.IsGuest() {
		s.metrics.AddLoyaltyPoints(order.LoyaltyPointsEarned, order.LoyaltyPointsUsed)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number":   order.OrderNumber,
		"order_id":       order.ID.String(),
		"total":          order.TotalAmount.StringFixed(2),
		"points_earned":  order.LoyaltyPointsEarned,
		"points_balance": settlement.NewBalance,
	}), "order created")
	return order, nil
}

func (s *Service) validate(c *cart.Cart, req Request) error {
	if c.IsEmpty() {
		return apperr.New(apperr.CodeValidation, "empty cart")
	}
	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	if err := validate.Struct(req); err != nil {
		return err
	}
	if c.LoyaltyPointsUsed > 0 && req.UserID == nil {
		return apperr.New(apperr.CodeValidation, "guest orders cannot redeem loyalty points")
	}
	if c.Total.IsNegative() {
		return apperr.New(apperr.CodeValidation, "loyalty discount exceeds order amount").
			WithDetail("total", c.Total.StringFixed(2))
	}
	return nil
}

func (s *Service) acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if s.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Wrap(apperr.CodeStateConflict, err, "another checkout is in progress")
		}
		return nil, apperr.Persistence(StepAcquireLock, err)
	}
	return release, nil
}

func (s *Service) draft(c *cart.Cart, req Request) *models.Order {
	scheduled := s.now()
	if req.ScheduledTime != nil {
		scheduled = *req.ScheduledTime
	}
	order := &models.Order{
		Status:              models.OrderStatusPending,
		OrderType:           req.OrderType,
		Subtotal:            c.Subtotal,
		DeliveryFee:         c.DeliveryFee,
		LoyaltyDiscount:     c.LoyaltyDiscount,
		TotalAmount:         c.Total,
		LoyaltyPointsUsed:   c.LoyaltyPointsUsed,
		LoyaltyPointsEarned: loyalty.PointsEarned(c.Total),
		SpecialInstructions: req.SpecialInstructions,
		DeliveryAddress:     strings.TrimSpace(req.DeliveryAddress),
		ScheduledTime:       scheduled,
		CustomerFirstName:   req.Customer.FirstName,
		CustomerLastName:    req.Customer.LastName,
		CustomerPhone:       req.Customer.Phone,
		CustomerEmail:       req.Customer.Email,
	}
	if req.UserID != nil {
		order.UserID = uuid.NullUUID{UUID: *req.UserID, Valid: true}
	}
	return order
}

// orderItems snapshots cart lines. A variant id the product snapshot does not
// know is dropped, matching the price that was charged.
func orderItems(c *cart.Cart) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(c.Items))
	for _, line := range c.Items {
		item := models.OrderItem{
			ProductID:           line.Product.ID,
			Quantity:            line.Quantity,
			UnitPrice:           line.UnitPrice,
			TotalPrice:          line.TotalPrice,
			SpecialInstructions: line.SpecialInstructions,
			ProductName:         line.Product.Name,
			ProductImageURL:     line.Product.ImageURL,
		}
		if id, err := uuid.Parse(line.VariantID); err == nil {
			if v, ok := line.Product.Variant(id); ok {
				item.VariantID = uuid.NullUUID{UUID: id, Valid: true}
				item.VariantName = v.Name
			}
		}
		items = append(items, item)
	}
	return items
}

func (s *Service) persist(ctx context.Context, order *models.Order, items []models.OrderItem) (loyalty.Settlement, error) {
	var settlement loyalty.Settlement
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return atStep(StepInsertOrder, err)
		}
		if err := tx.InsertOrderItems(ctx, order.ID, items); err != nil {
			return atStep(StepInsertOrderItems, err)
		}
		if order.IsGuest() {
			return nil
		}

		userID := order.UserID.UUID
		balance, version, err := tx.LockUserLoyalty(ctx, userID)
		if err != nil {
			return atStep(StepReadBalance, err)
		}
		settlement, err = loyalty.Settle(balance, order.LoyaltyPointsEarned, order.LoyaltyPointsUsed, order.OrderNumber)
		if err != nil {
			return err
		}
		if err := tx.UpdateUserLoyalty(ctx, userID, settlement.NewBalance, settlement.Tier, version); err != nil {
			return atStep(StepUpdateBalance, err)
		}
		for _, m := range settlement.Movements {
			entry := &models.LoyaltyTransaction{
				UserID:          userID,
				OrderID:         uuid.NullUUID{UUID: order.ID, Valid: true},
				PointsChange:    m.PointsChange,
				TransactionType: m.Type,
				Description:     m.Description,
			}
			if err := tx.InsertLoyaltyTransaction(ctx, entry); err != nil {
				return atStep(StepInsertTransaction, err)
			}
		}
		return nil
	})
	return settlement, err
}

// translate maps a finalization failure to the domain taxonomy.
func (s *Service) translate(err error) error {
	switch {
	case errors.Is(err, loyalty.ErrInsufficientPoints):
		return apperr.Wrap(apperr.CodeValidation, err, "not enough loyalty points")
	case errors.Is(err, database.ErrUserNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "user not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Persistence(StepCommit, err)
	}

	var se *stepError
	if errors.As(err, &se) {
		return apperr.Persistence(se.step, err)
	}
	return apperr.Persistence(StepCommit, err)
}

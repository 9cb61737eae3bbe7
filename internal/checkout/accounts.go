package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/loyalty"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/validate"
)

type NewUser struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,min=6,max=30"`
}

// LoyaltyState is a user's balance with the tier derived from it.
type LoyaltyState struct {
	UserID uuid.UUID          `json:"user_id"`
	Points int                `json:"points"`
	Tier   models.LoyaltyTier `json:"tier"`
}

// CreateUser signs a user up with 0 points at bronze tier.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.configured(); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, apperr.Wrap(apperr.CodeStateConflict, err, "email already registered")
		}
		return nil, apperr.Persistence("create_user", err)
	}
	return user, nil
}

func (s *Service) getUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "user not found").WithDetail("user_id", id.String())
		}
		return nil, apperr.Persistence("get_user", err)
	}
	return user, nil
}

func (s *Service) LoyaltyState(ctx context.Context, userID uuid.UUID) (*LoyaltyState, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &LoyaltyState{
		UserID: user.ID,
		Points: user.LoyaltyPoints,
		Tier:   loyalty.TierOf(user.LoyaltyPoints),
	}, nil
}

// LoyaltyHistory returns the user's ledger newest first.
func (s *Service) LoyaltyHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListLoyaltyTransactions(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Persistence("list_loyalty_transactions", err)
	}
	return txs, nil
}

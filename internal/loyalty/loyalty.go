// Package loyalty holds the points arithmetic and tier thresholds of the
// loyalty program. Tier is always derived from the balance.
package loyalty

import (
	"fmt"

	"github.com/safar/osushi-store/internal/models"
	"github.com/shopspring/decimal"
)

const (
	SilverThreshold   = 500
	GoldThreshold     = 2000
	PlatinumThreshold = 5000
)

// pointValue is the currency value of one point: 100 points = 1 unit.
var pointValue = decimal.New(1, -2)

// TierOf classifies a balance. Lower bounds are inclusive.
func TierOf(points int) models.LoyaltyTier {
	switch {
	case points >= PlatinumThreshold:
		return models.LoyaltyTierPlatinum
	case points >= GoldThreshold:
		return models.LoyaltyTierGold
	case points >= SilverThreshold:
		return models.LoyaltyTierSilver
	default:
		return models.LoyaltyTierBronze
	}
}

// Discount converts redeemed points to a currency amount.
func Discount(points int) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Mul(pointValue)
}

// PointsEarned awards one point per whole currency unit of the post-discount total.
func PointsEarned(total decimal.Decimal) int {
	if total.IsNegative() {
		return 0
	}
	return int(total.Floor().IntPart())
}

// Movement is one ledger entry to append for an order.
type Movement struct {
	Type         models.LoyaltyTransactionType
	PointsChange int
	Description  string
}

// Settlement is the outcome of applying an order to a balance.
type Settlement struct {
	PreviousBalance int
	NewBalance      int
	Tier            models.LoyaltyTier
	Movements       []Movement
}

// Settle applies earned and used points to balance. Earned and redeemed points
// are always recorded as separate movements; zero movements are omitted.
func Settle(balance, earned, used int, orderNumber string) (Settlement, error) {
	if earned < 0 || used < 0 {
		return Settlement{}, fmt.Errorf("negative points movement (earned=%d used=%d)", earned, used)
	}
	if used > balance {
		return Settlement{}, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientPoints, used, balance)
	}

	next := balance + earned - used
	s := Settlement{
		PreviousBalance: balance,
		NewBalance:      next,
		Tier:            TierOf(next),
	}
	if earned > 0 {
		s.Movements = append(s.Movements, Movement{
			Type:         models.LoyaltyTransactionEarned,
			PointsChange: earned,
			Description:  "Points earned on order " + orderNumber,
		})
	}
	if used > 0 {
		s.Movements = append(s.Movements, Movement{
			Type:         models.LoyaltyTransactionRedeemed,
			PointsChange: -used,
			Description:  "Points redeemed on order " + orderNumber,
		})
	}
	return s, nil
}

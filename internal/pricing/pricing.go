// Package pricing computes cart line unit prices from catalog snapshots.
package pricing

import (
	"github.com/safar/osushi-store/internal/models"
	"github.com/shopspring/decimal"
)

// UnitPrice returns the product base price plus the modifier of the variant
// identified by variantID. An empty or unknown variant id prices the product at
// its base price.
func UnitPrice(product models.ProductWithVariants, variantID string) decimal.Decimal {
	price := product.BasePrice
	if variantID == "" {
		return price
	}
	for _, v := range product.Variants {
		if v.ID.String() == variantID {
			return price.Add(v.PriceModifier)
		}
	}
	return price
}

// LineTotal is quantity × unitPrice.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

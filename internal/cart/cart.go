package cart

import (
	"github.com/google/uuid"
	"github.com/safar/osushi-store/internal/loyalty"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/pricing"
	"github.com/shopspring/decimal"
)

const defaultVariantKey = "default"

// LineItem is one distinct product and variant pairing in a cart.
type LineItem struct {
	ID                  string                     `json:"id"`
	Product             models.ProductWithVariants `json:"product"`
	VariantID           string                     `json:"variant_id,omitempty"`
	Quantity            int                        `json:"quantity"`
	UnitPrice           decimal.Decimal            `json:"unit_price"`
	TotalPrice          decimal.Decimal            `json:"total_price"`
	SpecialInstructions string                     `json:"special_instructions,omitempty"`
}

// Cart is the client-side order draft. Totals are recomputed after every mutation.
type Cart struct {
	Items             []LineItem      `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	LoyaltyPointsUsed int             `json:"loyalty_points_used"`
	LoyaltyDiscount   decimal.Decimal `json:"loyalty_discount"`
	Total             decimal.Decimal `json:"total"`
}

func Empty() *Cart {
	return &Cart{Items: []LineItem{}}
}

// LineID is the composite key that merges repeated adds of the same product and variant.
func LineID(productID uuid.UUID, variantID string) string {
	if variantID == "" {
		variantID = defaultVariantKey
	}
	return productID.String() + "-" + variantID
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount is the sum of all line quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Line(id string) (*LineItem, bool) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i], true
		}
	}
	return nil, false
}

func (c *Cart) add(product models.ProductWithVariants, variantID string, quantity int, instructions string) {
	id := LineID(product.ID, variantID)
	if line, ok := c.Line(id); ok {
		line.Quantity += quantity
		line.TotalPrice = pricing.LineTotal(line.UnitPrice, line.Quantity)
		if instructions != "" {
			line.SpecialInstructions = instructions
		}
		return
	}

	unit := pricing.UnitPrice(product, variantID)
	c.Items = append(c.Items, LineItem{
		ID:                  id,
		Product:             product,
		VariantID:           variantID,
		Quantity:            quantity,
		UnitPrice:           unit,
		TotalPrice:          pricing.LineTotal(unit, quantity),
		SpecialInstructions: instructions,
	})
}

func (c *Cart) setQuantity(id string, quantity int) bool {
	line, ok := c.Line(id)
	if !ok {
		return false
	}
	if quantity <= 0 {
		c.remove(id)
		return true
	}
	line.Quantity = quantity
	line.TotalPrice = pricing.LineTotal(line.UnitPrice, quantity)
	return true
}

func (c *Cart) remove(id string) bool {
	kept := c.Items[:0]
	removed := false
	for _, item := range c.Items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

func (c *Cart) applyLoyaltyPoints(points int) {
	c.LoyaltyPointsUsed = points
	c.LoyaltyDiscount = loyalty.Discount(points)
}

func (c *Cart) recalculate() {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	c.Subtotal = subtotal
	c.Total = subtotal.Add(c.DeliveryFee).Sub(c.LoyaltyDiscount)
}

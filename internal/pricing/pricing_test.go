package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/safar/osushi-store/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sashimi() models.ProductWithVariants {
	return models.ProductWithVariants{
		Product: models.Product{
			ID:        uuid.New(),
			Name:      "Sashimi Saumon",
			BasePrice: decimal.RequireFromString("12.90"),
		},
		Variants: []models.ProductVariant{
			{ID: uuid.New(), Name: "Standard (6 pièces)", PriceModifier: decimal.Zero, IsDefault: true},
			{ID: uuid.New(), Name: "Large (12 pièces)", PriceModifier: decimal.RequireFromString("12.00")},
			{ID: uuid.New(), Name: "Mini", PriceModifier: decimal.RequireFromString("-2.50")},
		},
	}
}

func TestUnitPrice(t *testing.T) {
	p := sashimi()

	tests := []struct {
		name      string
		variantID string
		want      string
	}{
		{"no variant", "", "12.90"},
		{"default variant", p.Variants[0].ID.String(), "12.90"},
		{"large variant", p.Variants[1].ID.String(), "24.90"},
		{"negative modifier", p.Variants[2].ID.String(), "10.40"},
		{"unknown variant", "nonexistent", "12.90"},
		{"variant of another product", uuid.NewString(), "12.90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnitPrice(p, tt.variantID)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestUnitPriceIsStable(t *testing.T) {
	p := sashimi()
	id := p.Variants[1].ID.String()

	first := UnitPrice(p, id)
	for i := 0; i < 100; i++ {
		assert.True(t, UnitPrice(p, id).Equal(first))
	}
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("12.90"), 2)
	assert.Equal(t, "25.8", got.String())
}

// Package catalog serves categories, products and variants to the storefront.
// Read paths never fail: an unconfigured or unreachable database yields empty
// results and a warning so the menu stays browsable.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/osushi-store/internal/apperr"
	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/logger"
	"github.com/safar/osushi-store/internal/models"
	"github.com/safar/osushi-store/internal/store"
)

const SettingDeliveryFee = "delivery_fee"

type Provider struct {
	db   store.Querier
	tx   database.Beginner
	logg *logger.Logger
}

// NewProvider accepts a nil db; every read then returns empty results.
func NewProvider(db *sql.DB, logg *logger.Logger) *Provider {
	if logg == nil {
		logg = logger.Nop()
	}
	p := &Provider{logg: logg}
	if db != nil {
		p.db = db
		p.tx = db
	}
	return p
}

func (p *Provider) Configured() bool {
	return p.db != nil
}

func (p *Provider) degrade(ctx context.Context, what string, err error) {
	ctx = p.logg.WithField(ctx, "catalog_read", what)
	if err == nil {
		p.logg.Warn(ctx, "catalog unavailable: database not configured")
		return
	}
	p.logg.Error(ctx, "catalog read failed, serving empty result", err)
}

func (p *Provider) ListCategories(ctx context.Context) []models.Category {
	if p.db == nil {
		p.degrade(ctx, "categories", nil)
		return []models.Category{}
	}
	categories, err := store.ListCategories(ctx, p.db)
	if err != nil {
		p.degrade(ctx, "categories", err)
		return []models.Category{}
	}
	return categories
}

func (p *Provider) ListProducts(ctx context.Context, filter store.ProductFilter) []models.Product {
	if p.db == nil {
		p.degrade(ctx, "products", nil)
		return []models.Product{}
	}
	products, err := store.ListProducts(ctx, p.db, filter)
	if err != nil {
		p.degrade(ctx, "products", err)
		return []models.Product{}
	}
	return products
}

// ListVariants returns available variants; productID nil means all products.
func (p *Provider) ListVariants(ctx context.Context, productID *uuid.UUID) []models.ProductVariant {
	if p.db == nil {
		p.degrade(ctx, "variants", nil)
		return []models.ProductVariant{}
	}
	variants, err := store.ListVariants(ctx, p.db, productID)
	if err != nil {
		p.degrade(ctx, "variants", err)
		return []models.ProductVariant{}
	}
	return variants
}

// ListProductsWithVariants joins products to their variants and category in memory.
func (p *Provider) ListProductsWithVariants(ctx context.Context, filter store.ProductFilter) []models.ProductWithVariants {
	products := p.ListProducts(ctx, filter)
	if len(products) == 0 {
		return []models.ProductWithVariants{}
	}

	byProduct := map[uuid.UUID][]models.ProductVariant{}
	for _, v := range p.ListVariants(ctx, nil) {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	categories := map[uuid.UUID]models.Category{}
	for _, c := range p.ListCategories(ctx) {
		categories[c.ID] = c
	}

	out := make([]models.ProductWithVariants, 0, len(products))
	for _, product := range products {
		out = append(out, assemble(product, byProduct[product.ID], categories))
	}
	return out
}

func (p *Provider) PopularProducts(ctx context.Context) []models.ProductWithVariants {
	return p.ListProductsWithVariants(ctx, store.ProductFilter{OnlyAvailable: true, OnlyPopular: true})
}

func (p *Provider) SearchProducts(ctx context.Context, query string) []models.ProductWithVariants {
	return p.ListProductsWithVariants(ctx, store.ProductFilter{OnlyAvailable: true, Search: query})
}

// GetProduct is used on the add-to-cart path and reports failures instead of
// degrading.
func (p *Provider) GetProduct(ctx context.Context, id uuid.UUID) (models.ProductWithVariants, error) {
	if p.db == nil {
		return models.ProductWithVariants{}, apperr.New(apperr.CodeConfiguration, "catalog is not configured")
	}

	product, err := store.GetProduct(ctx, p.db, id)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			return models.ProductWithVariants{}, apperr.Wrap(apperr.CodeNotFound, err, "product not found").
				WithDetail("product_id", id.String())
		}
		return models.ProductWithVariants{}, apperr.Persistence("get_product", err)
	}

	variants, err := store.ListVariants(ctx, p.db, &id)
	if err != nil {
		return models.ProductWithVariants{}, apperr.Persistence("list_variants", err)
	}

	categories := map[uuid.UUID]models.Category{}
	for _, c := range p.ListCategories(ctx) {
		categories[c.ID] = c
	}
	return assemble(*product, variants, categories), nil
}

func assemble(product models.Product, variants []models.ProductVariant, categories map[uuid.UUID]models.Category) models.ProductWithVariants {
	if variants == nil {
		variants = []models.ProductVariant{}
	}
	out := models.ProductWithVariants{Product: product, Variants: variants}
	if c, ok := categories[product.CategoryID]; ok {
		out.Category = &c
	}
	return out
}

// ValidateVariants checks that each product has at most one default variant.
func ValidateVariants(variants []models.ProductVariant) error {
	defaults := map[uuid.UUID]int{}
	for _, v := range variants {
		if v.IsDefault {
			defaults[v.ProductID]++
		}
	}
	for productID, n := range defaults {
		if n > 1 {
			return apperr.New(apperr.CodeValidation, "product has more than one default variant").
				WithDetail("product_id", productID.String()).
				WithDetail("default_variants", n)
		}
	}
	return nil
}

// Ingest writes a product and its variants in one transaction after validation.
func (p *Provider) Ingest(ctx context.Context, product *models.Product, variants []models.ProductVariant) error {
	if p.tx == nil {
		return apperr.New(apperr.CodeConfiguration, "catalog is not configured")
	}
	for i := range variants {
		variants[i].ProductID = product.ID
	}
	if err := ValidateVariants(variants); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "product", product.Name), "rejected catalog ingestion")
		return err
	}

	err := database.WithTransaction(ctx, p.tx, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := store.CreateProduct(ctx, tx, product); err != nil {
			return err
		}
		for i := range variants {
			variants[i].ProductID = product.ID
			if err := store.CreateVariant(ctx, tx, &variants[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Persistence("ingest_product", err)
	}
	return nil
}

// Settings returns restaurant settings keyed by name; empty when unavailable.
func (p *Provider) Settings(ctx context.Context) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if p.db == nil {
		p.degrade(ctx, "settings", nil)
		return out
	}
	settings, err := store.ListSettings(ctx, p.db)
	if err != nil {
		p.degrade(ctx, "settings", err)
		return out
	}
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out
}

// DeliveryFee reads the delivery_fee setting, falling back when it is absent,
// unreadable or negative.
func (p *Provider) DeliveryFee(ctx context.Context, fallback decimal.Decimal) decimal.Decimal {
	raw, ok := p.Settings(ctx)[SettingDeliveryFee]
	if !ok {
		return fallback
	}
	fee, err := parseFee(raw)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "setting", SettingDeliveryFee), fmt.Sprintf("ignoring setting: %v", err))
		return fallback
	}
	return fee
}

func parseFee(raw json.RawMessage) (decimal.Decimal, error) {
	var fee decimal.Decimal
	if err := json.Unmarshal(raw, &fee); err != nil {
		return decimal.Zero, fmt.Errorf("parse delivery fee: %w", err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative delivery fee %s", fee)
	}
	return fee, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/models"
)

type ProductFilter struct {
	CategoryID    *uuid.UUID
	OnlyAvailable bool
	OnlyPopular   bool
	Search        string
}

const productColumns = `id, category_id, name, description, base_price, image_url, is_popular,
	is_available, allergens, nutritional_info, preparation_time, sort_order, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Name,
		&p.Description,
		&p.BasePrice,
		&p.ImageURL,
		&p.IsPopular,
		&p.IsAvailable,
		pq.Array(&p.Allergens),
		&p.NutritionalInfo,
		&p.PreparationTime,
		&p.SortOrder,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func CreateCategory(ctx context.Context, db Querier, c *models.Category) error {
	query := `
		INSERT INTO categories (name, description, image_url, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query, c.Name, c.Description, c.ImageURL, c.SortOrder, c.IsActive).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// ListCategories returns active categories ordered by sort_order.
func ListCategories(ctx context.Context, db Querier) ([]models.Category, error) {
	query := `
		SELECT id, name, description, image_url, sort_order, is_active, created_at
		FROM categories
		WHERE is_active
		ORDER BY sort_order, name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.SortOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}

func CreateProduct(ctx context.Context, db Querier, p *models.Product) error {
	if p.Allergens == nil {
		p.Allergens = []string{}
	}
	query := `
		INSERT INTO products (category_id, name, description, base_price, image_url, is_popular,
			is_available, allergens, nutritional_info, preparation_time, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		p.CategoryID, p.Name, p.Description, p.BasePrice, p.ImageURL, p.IsPopular,
		p.IsAvailable, pq.Array(p.Allergens), p.NutritionalInfo, p.PreparationTime, p.SortOrder,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func GetProduct(ctx context.Context, db Querier, id uuid.UUID) (*models.Product, error) {
	p := &models.Product{}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(db.QueryRowContext(ctx, query, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts applies filter and orders by sort_order.
func ListProducts(ctx context.Context, db Querier, filter ProductFilter) ([]models.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.OnlyAvailable {
		where = append(where, "is_available")
	}
	if filter.OnlyPopular {
		where = append(where, "is_popular")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sort_order, name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}

func CreateVariant(ctx context.Context, db Querier, v *models.ProductVariant) error {
	query := `
		INSERT INTO product_variants (product_id, name, price_modifier, is_default, is_available, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := db.QueryRowContext(ctx, query, v.ProductID, v.Name, v.PriceModifier, v.IsDefault, v.IsAvailable, v.SortOrder).
		Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

// ListVariants returns available variants, optionally for a single product.
func ListVariants(ctx context.Context, db Querier, productID *uuid.UUID) ([]models.ProductVariant, error) {
	query := `
		SELECT id, product_id, name, price_modifier, is_default, is_available, sort_order
		FROM product_variants
		WHERE is_available`
	var args []any
	if productID != nil {
		query += ` AND product_id = $1`
		args = append(args, *productID)
	}
	query += ` ORDER BY product_id, sort_order, name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	variants := []models.ProductVariant{}
	for rows.Next() {
		var v models.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.PriceModifier, &v.IsDefault, &v.IsAvailable, &v.SortOrder); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return variants, nil
}

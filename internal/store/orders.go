package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/models"
)

const orderColumns = `id, user_id, order_number, status, order_type, subtotal, delivery_fee,
	loyalty_discount, total_amount, loyalty_points_used, loyalty_points_earned,
	special_instructions, delivery_address, scheduled_time, customer_first_name,
	customer_last_name, customer_phone, customer_email, created_at, updated_at, version`

func scanOrder(row interface{ Scan(...any) error }, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.UserID,
		&o.OrderNumber,
		&o.Status,
		&o.OrderType,
		&o.Subtotal,
		&o.DeliveryFee,
		&o.LoyaltyDiscount,
		&o.TotalAmount,
		&o.LoyaltyPointsUsed,
		&o.LoyaltyPointsEarned,
		&o.SpecialInstructions,
		&o.DeliveryAddress,
		&o.ScheduledTime,
		&o.CustomerFirstName,
		&o.CustomerLastName,
		&o.CustomerPhone,
		&o.CustomerEmail,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	)
}

// InsertOrder writes the order row and fills in generated columns. A clash on
// order_number is reported as database.ErrOrderNumberTaken.
func InsertOrder(ctx context.Context, db Querier, o *models.Order) error {
	query := `
		INSERT INTO orders (user_id, order_number, status, order_type, subtotal, delivery_fee,
			loyalty_discount, total_amount, loyalty_points_used, loyalty_points_earned,
			special_instructions, delivery_address, scheduled_time, customer_first_name,
			customer_last_name, customer_phone, customer_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query,
		o.UserID, o.OrderNumber, o.Status, o.OrderType, o.Subtotal, o.DeliveryFee,
		o.LoyaltyDiscount, o.TotalAmount, o.LoyaltyPointsUsed, o.LoyaltyPointsEarned,
		o.SpecialInstructions, o.DeliveryAddress, o.ScheduledTime, o.CustomerFirstName,
		o.CustomerLastName, o.CustomerPhone, o.CustomerEmail,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		if database.IsOrderNumberTaken(err) {
			return fmt.Errorf("insert order %s: %w", o.OrderNumber, database.ErrOrderNumberTaken)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertOrderItems writes all items for orderID, stamping their ids in place.
func InsertOrderItems(ctx context.Context, db Querier, orderID uuid.UUID, items []models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, variant_id, quantity, unit_price,
			total_price, special_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	for i := range items {
		item := &items[i]
		item.OrderID = orderID
		err := db.QueryRowContext(ctx, query,
			orderID, item.ProductID, item.VariantID, item.Quantity, item.UnitPrice,
			item.TotalPrice, item.SpecialInstructions,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	return nil
}

// GetOrder loads an order with its items, joined to product and variant names.
func GetOrder(ctx context.Context, db Querier, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := scanOrder(db.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := listOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func listOrderItems(ctx context.Context, db Querier, orderID uuid.UUID) ([]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.variant_id, oi.quantity, oi.unit_price,
			oi.total_price, oi.special_instructions, oi.created_at,
			p.name, p.image_url, COALESCE(v.name, '')
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		LEFT JOIN product_variants v ON v.id = oi.variant_id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at, oi.id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.SpecialInstructions,
			&item.CreatedAt,
			&item.ProductName,
			&item.ProductImageURL,
			&item.VariantName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// ListOrdersCursor pages a user's orders newest first by (created_at, id).
func ListOrdersCursor(ctx context.Context, db Querier, userID uuid.UUID, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListOrders is the offset-paginated view of all orders, optionally by status.
func ListOrders(ctx context.Context, db Querier, status *models.OrderStatus, page, pageSize int) (*OffsetPage[models.Order], error) {
	page, pageSize = NormalizePage(page, pageSize, 100)

	where := ""
	args := []any{}
	if status != nil {
		where = ` WHERE status = $1`
		args = append(args, *status)
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)

	rows, err := db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage[models.Order]{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// UpdateOrderStatus sets status if the row is still at version.
func UpdateOrderStatus(ctx context.Context, db Querier, id uuid.UUID, status models.OrderStatus, version int) error {
	query := `
		UPDATE orders
		SET status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2 AND version = $3`

	result, err := db.ExecContext(ctx, query, status, id, version)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOptimisticLockFailed
	}
	return nil
}

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/safar/osushi-store/internal/models"
)

// InsertLoyaltyTransaction appends a ledger entry. Entries are never updated.
func InsertLoyaltyTransaction(ctx context.Context, db Querier, t *models.LoyaltyTransaction) error {
	query := `
		INSERT INTO loyalty_transactions (user_id, order_id, points_change, transaction_type, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query, t.UserID, t.OrderID, t.PointsChange, t.TransactionType, t.Description).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert loyalty transaction: %w", err)
	}
	return nil
}

// ListLoyaltyTransactions returns a user's ledger newest first.
func ListLoyaltyTransactions(ctx context.Context, db Querier, userID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, order_id, points_change, transaction_type, description, created_at
		FROM loyalty_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list loyalty transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.LoyaltyTransaction{}
	for rows.Next() {
		var t models.LoyaltyTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.PointsChange, &t.TransactionType, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan loyalty transaction: %w", err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return txs, nil
}

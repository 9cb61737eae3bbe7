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

const userColumns = `id, email, first_name, last_name, phone, address, city, postal_code,
	loyalty_points, loyalty_tier, created_at, updated_at, version`

func scanUser(row *sql.Row, u *models.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Address,
		&u.City,
		&u.PostalCode,
		&u.LoyaltyPoints,
		&u.LoyaltyTier,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Version,
	)
}

// CreateUser inserts a user with an empty bronze loyalty account.
func CreateUser(ctx context.Context, db Querier, u *models.User) error {
	query := `
		INSERT INTO users (email, first_name, last_name, phone, address, city, postal_code,
			loyalty_points, loyalty_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING ` + userColumns

	row := db.QueryRowContext(ctx, query,
		u.Email, u.FirstName, u.LastName, u.Phone, u.Address, u.City, u.PostalCode, models.LoyaltyTierBronze)
	if err := scanUser(row, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func GetUser(ctx context.Context, db Querier, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := scanUser(db.QueryRowContext(ctx, query, id), u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// LockUserLoyalty reads the loyalty balance and holds the row lock until tx ends.
func LockUserLoyalty(ctx context.Context, tx *sql.Tx, id uuid.UUID) (points int, version int, err error) {
	query := `
		SELECT loyalty_points, version
		FROM users
		WHERE id = $1
		FOR UPDATE`

	err = tx.QueryRowContext(ctx, query, id).Scan(&points, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, database.ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("lock user loyalty: %w", err)
	}
	return points, version, nil
}

// UpdateUserLoyalty writes the balance and tier if the row is still at version.
func UpdateUserLoyalty(ctx context.Context, db Querier, id uuid.UUID, points int, tier models.LoyaltyTier, version int) error {
	query := `
		UPDATE users
		SET loyalty_points = $1,
		    loyalty_tier = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3 AND version = $4`

	result, err := db.ExecContext(ctx, query, points, tier, id, version)
	if err != nil {
		return fmt.Errorf("update user loyalty: %w", err)
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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/models"
)

func GetSetting(ctx context.Context, db Querier, key string) (*models.RestaurantSetting, error) {
	s := &models.RestaurantSetting{}
	query := `SELECT id, key, value, updated_at FROM restaurant_settings WHERE key = $1`

	var raw []byte
	if err := db.QueryRowContext(ctx, query, key).Scan(&s.ID, &s.Key, &raw, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSettingNotFound
		}
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	s.Value = json.RawMessage(raw)
	return s, nil
}

func ListSettings(ctx context.Context, db Querier) ([]models.RestaurantSetting, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, key, value, updated_at FROM restaurant_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := []models.RestaurantSetting{}
	for rows.Next() {
		var (
			s   models.RestaurantSetting
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.Key, &raw, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		s.Value = json.RawMessage(raw)
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return settings, nil
}

// UpsertSetting stores value as JSON under key.
func UpsertSetting(ctx context.Context, db Querier, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal setting %s: %w", key, err)
	}

	query := `
		INSERT INTO restaurant_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

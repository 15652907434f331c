package storage

import (
	"context"
	"database/sql"
	"errors"
)

// AuthKeySetting is the settings key holding the shared API secret.
const AuthKeySetting = "header_auth_key"

// GetSetting returns the value stored under key, or ErrNotFound.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT setting_value FROM settings WHERE setting_key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return value, nil
}

// SetSetting inserts or replaces the value stored under key.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value
	`, key, value)

	return err
}

// AuthKey returns the shared API secret.
func (r *Repository) AuthKey(ctx context.Context) (string, error) {
	return r.GetSetting(ctx, AuthKeySetting)
}

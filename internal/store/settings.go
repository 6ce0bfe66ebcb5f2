package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/erazemk/najdeno/internal/model"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}

// EnsureDefaultSettings stores the default value of every setting that has
// none yet. Existing values are left alone.
func EnsureDefaultSettings(ctx context.Context, q Querier) error {
	values := model.DefaultSettings().Values()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
			key, values[key],
		)
		if err != nil {
			return fmt.Errorf("storing default %s: %w", key, err)
		}
	}
	return nil
}

// LoadSettings reads the global settings. Keys without a stored value fall
// back to their defaults.
func LoadSettings(ctx context.Context, q Querier) (model.Settings, error) {
	defaults := model.DefaultSettings()
	known := defaults.Values()

	args := make([]any, 0, len(known))
	for _, key := range slices.Sorted(maps.Keys(known)) {
		args = append(args, key)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE key IN (`+placeholders(len(args))+`)`, args...,
	)
	if err != nil {
		return defaults, fmt.Errorf("loading settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string, len(known))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return defaults, fmt.Errorf("scanning setting: %w", err)
		}
		stored[key] = value
	}
	if err := rows.Err(); err != nil {
		return defaults, fmt.Errorf("loading settings: %w", err)
	}
	if len(stored) == 0 {
		return defaults, nil
	}

	settings, err := defaults.Apply(stored)
	if err != nil {
		return defaults, fmt.Errorf("stored settings are invalid: %w", err)
	}
	return settings, nil
}

// SaveSettings writes every value of s.
func SaveSettings(ctx context.Context, q Querier, s model.Settings) error {
	values := s.Values()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		_, err := q.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, values[key],
		)
		if err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return nil
}

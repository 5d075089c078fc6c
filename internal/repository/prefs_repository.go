package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Preference keys.
const (
	PrefToken = "auth_token"
	PrefTheme = "theme"
)

// PrefsRepo is a small key/value table for the console's durable client
// state: the auth token and the UI theme.
type PrefsRepo struct{ DB *sql.DB }

func NewPrefsRepo(db *sql.DB) *PrefsRepo { return &PrefsRepo{DB: db} }

// Get returns the value of key or ErrNotFound.
func (r *PrefsRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRowContext(ctx, "SELECT value FROM prefs WHERE name=? LIMIT 1", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *PrefsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO prefs (name, value) VALUES (?,?) ON DUPLICATE KEY UPDATE value=VALUES(value)",
		key, value)
	return err
}

func (r *PrefsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM prefs WHERE name=?", key)
	return err
}

// LoadToken returns the stored token, or "" when none was saved.
func (r *PrefsRepo) LoadToken(ctx context.Context) (string, error) {
	v, err := r.Get(ctx, PrefToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (r *PrefsRepo) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return r.Delete(ctx, PrefToken)
	}
	return r.Set(ctx, PrefToken, token)
}

// Theme returns the saved theme or def.
func (r *PrefsRepo) Theme(ctx context.Context, def string) string {
	v, err := r.Get(ctx, PrefTheme)
	if err != nil || v == "" {
		return def
	}
	return v
}

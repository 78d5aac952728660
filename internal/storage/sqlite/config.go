package sqlite

import (
	"context"

	"github.com/weftworks/weft/internal/storage"
)

// GetConfig reads one config cell. Missing keys return ErrNotFound.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", storage.WrapDBError("get config "+key, err)
	}
	return value, nil
}

// SetConfig writes one config cell.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return storage.WrapDBError("set config "+key, err)
}

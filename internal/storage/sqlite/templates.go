package sqlite

import (
	"context"
	"time"

	"github.com/weftworks/weft/internal/storage"
)

// UpsertTemplateRow writes one persisted type template definition.
func (s *Store) UpsertTemplateRow(ctx context.Context, row storage.TemplateRow) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO type_templates (type, pack, definition, is_builtin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			pack = excluded.pack,
			definition = excluded.definition,
			is_builtin = excluded.is_builtin,
			updated_at = excluded.updated_at`,
		row.Type, row.Pack, row.Def, boolToInt(row.Builtin), now, now)
	return storage.WrapDBError("upsert template row", err)
}

// ListTemplateRows returns every persisted template definition.
func (s *Store) ListTemplateRows(ctx context.Context) ([]storage.TemplateRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, pack, definition, is_builtin, created_at, updated_at
		FROM type_templates ORDER BY type`)
	if err != nil {
		return nil, storage.WrapDBError("list template rows", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.TemplateRow
	for rows.Next() {
		var r storage.TemplateRow
		var builtin int
		if err := rows.Scan(&r.Type, &r.Pack, &r.Def, &builtin, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, storage.WrapDBError("scan template row", err)
		}
		r.Builtin = builtin != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertPackRow writes one persisted pack definition.
func (s *Store) UpsertPackRow(ctx context.Context, row storage.PackRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packs (name, version, definition, is_builtin, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			definition = excluded.definition,
			is_builtin = excluded.is_builtin,
			enabled = excluded.enabled`,
		row.Name, row.Version, row.Def, boolToInt(row.Builtin), boolToInt(row.Enabled))
	return storage.WrapDBError("upsert pack row", err)
}

// ListPackRows returns every persisted pack definition.
func (s *Store) ListPackRows(ctx context.Context) ([]storage.PackRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, definition, is_builtin, enabled FROM packs ORDER BY name`)
	if err != nil {
		return nil, storage.WrapDBError("list pack rows", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.PackRow
	for rows.Next() {
		var r storage.PackRow
		var builtin, enabled int
		if err := rows.Scan(&r.Name, &r.Version, &r.Def, &builtin, &enabled); err != nil {
			return nil, storage.WrapDBError("scan pack row", err)
		}
		r.Builtin = builtin != 0
		r.Enabled = enabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

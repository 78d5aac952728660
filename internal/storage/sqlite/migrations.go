package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weftworks/weft/internal/debug"
	"github.com/weftworks/weft/internal/templates"
)

// builtinTemplateMinimum is the validation floor for migration 5: the
// embedded core and planning packs together define at least this many types.
const builtinTemplateMinimum = 9

// migration brings the schema from version-1 to version. Each migration
// runs in its own IMMEDIATE transaction; user_version is bumped as the last
// statement so a crash re-runs the whole step.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, conn *sql.Conn) error
}

var migrations = []migration{
	{1, "baseline", func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, schemaV1)
		return err
	}},
	{2, "full-text search", func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, schemaV2)
		return err
	}},
	{3, "custom workflow states", func(ctx context.Context, conn *sql.Conn) error {
		// The state list itself lives in config.json; the config cell keeps
		// a copy so category expansion works without the project dir.
		_, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO config (key, value) VALUES ('workflow_states', '[]')`)
		return err
	}},
	{4, "composite indexes", func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, schemaV4)
		return err
	}},
	{5, "workflow templates and packs", migrateToTemplates},
}

// RunMigrations applies every pending migration in ascending order. The
// current version lives in PRAGMA user_version, which is transactional with
// DDL, so a failed migration leaves the version untouched.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if err := runMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func runMigration(ctx context.Context, db *sql.DB, m migration) error {
	return withTx(ctx, db, func(ctx context.Context, conn *sql.Conn) error {
		var current int
		if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		if current >= m.version {
			return nil
		}
		if current != m.version-1 {
			return fmt.Errorf("schema at version %d, cannot apply version %d", current, m.version)
		}
		debug.Logf("sqlite: migrating schema %d -> %d (%s)", current, m.version, m.name)
		if err := m.apply(ctx, conn); err != nil {
			return err
		}
		// PRAGMA does not accept placeholders.
		_, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version))
		return err
	})
}

// migrateToTemplates is schema version 5. The whole step runs in one
// transaction: on any failure the rollback restores the untouched legacy
// templates table (and removes the partial backup and new tables with it).
// After success the legacy data lives on in _templates_v4_backup.
func migrateToTemplates(ctx context.Context, conn *sql.Conn) error {
	hadLegacy, err := tableExists(ctx, conn, "templates")
	if err != nil {
		return err
	}

	if hadLegacy {
		if _, err := conn.ExecContext(ctx,
			`CREATE TABLE _templates_v4_backup AS SELECT * FROM templates`); err != nil {
			return fmt.Errorf("backing up legacy templates: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, schemaV5); err != nil {
		return err
	}

	now := time.Now()

	if hadLegacy {
		if err := migrateLegacyTemplates(ctx, conn, now); err != nil {
			return err
		}
	}

	if err := seedBuiltinPacks(ctx, conn, now); err != nil {
		return err
	}

	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM type_templates`).Scan(&count); err != nil {
		return fmt.Errorf("counting migrated templates: %w", err)
	}
	if count < builtinTemplateMinimum {
		// Abort: the rollback leaves the legacy table untouched so the
		// operator can retry after fixing the cause.
		return fmt.Errorf("expected at least %d type templates after migration, found %d", builtinTemplateMinimum, count)
	}

	if hadLegacy {
		if _, err := conn.ExecContext(ctx, `DROP TABLE templates`); err != nil {
			return fmt.Errorf("dropping legacy templates table: %w", err)
		}
	}
	return nil
}

// migrateLegacyTemplates converts each pre-v5 per-type row into a default
// three-state definition under the "custom" pack, preserving its
// fields_schema.
func migrateLegacyTemplates(ctx context.Context, conn *sql.Conn, now time.Time) error {
	rows, err := conn.QueryContext(ctx, `SELECT type, fields_schema FROM templates`)
	if err != nil {
		return fmt.Errorf("reading legacy templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type legacyRow struct {
		typeName string
		fields   string
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		var fields sql.NullString
		if err := rows.Scan(&r.typeName, &fields); err != nil {
			return fmt.Errorf("scanning legacy template: %w", err)
		}
		r.fields = fields.String
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range legacy {
		def, err := legacyDefinition(r.typeName, r.fields)
		if err != nil {
			return fmt.Errorf("converting legacy template %q: %w", r.typeName, err)
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO type_templates (type, pack, definition, is_builtin, created_at, updated_at)
			VALUES (?, 'custom', ?, 0, ?, ?)`,
			r.typeName, def, now, now); err != nil {
			return fmt.Errorf("migrating legacy template %q: %w", r.typeName, err)
		}
	}
	return nil
}

// legacyDefinition builds the default open/in_progress/closed definition
// wrapped around a legacy fields_schema blob.
func legacyDefinition(typeName, fieldsSchema string) (string, error) {
	var fields json.RawMessage
	if fieldsSchema != "" {
		if !json.Valid([]byte(fieldsSchema)) {
			return "", fmt.Errorf("fields_schema is not valid JSON")
		}
		fields = json.RawMessage(fieldsSchema)
	} else {
		fields = json.RawMessage("[]")
	}

	def := map[string]interface{}{
		"type":          typeName,
		"pack":          "custom",
		"initial_state": "open",
		"states": []map[string]string{
			{"name": "open", "category": "open"},
			{"name": "in_progress", "category": "wip"},
			{"name": "closed", "category": "done"},
		},
		"transitions": []map[string]string{
			{"from": "open", "to": "in_progress"},
			{"from": "in_progress", "to": "open"},
			{"from": "in_progress", "to": "closed"},
			{"from": "closed", "to": "open"},
		},
		"fields_schema": fields,
	}
	out, err := json.Marshal(def)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// seedBuiltinPacks writes every embedded pack and its types with
// is_builtin=1. Re-seeding an existing row is an upsert so re-running the
// migration after a partial failure converges.
func seedBuiltinPacks(ctx context.Context, conn *sql.Conn, now time.Time) error {
	for _, pack := range templates.Builtin() {
		packDef, err := json.Marshal(pack)
		if err != nil {
			return fmt.Errorf("serializing pack %q: %w", pack.Name, err)
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO packs (name, version, definition, is_builtin, enabled)
			VALUES (?, ?, ?, 1, 1)
			ON CONFLICT(name) DO UPDATE SET version = excluded.version, definition = excluded.definition`,
			pack.Name, pack.Version, string(packDef)); err != nil {
			return fmt.Errorf("seeding pack %q: %w", pack.Name, err)
		}
		for i := range pack.Types {
			tmpl := &pack.Types[i]
			def, err := json.Marshal(tmpl)
			if err != nil {
				return fmt.Errorf("serializing template %q: %w", tmpl.Type, err)
			}
			if _, err := conn.ExecContext(ctx, `
				INSERT INTO type_templates (type, pack, definition, is_builtin, created_at, updated_at)
				VALUES (?, ?, ?, 1, ?, ?)
				ON CONFLICT(type) DO UPDATE SET pack = excluded.pack, definition = excluded.definition, updated_at = excluded.updated_at`,
				tmpl.Type, pack.Name, string(def), now, now); err != nil {
				return fmt.Errorf("seeding template %q: %w", tmpl.Type, err)
			}
		}
	}
	return nil
}

func tableExists(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var n int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for table %s: %w", name, err)
	}
	return n > 0, nil
}

// SchemaVersion reports the current user_version, for doctor output.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

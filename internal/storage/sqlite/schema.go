package sqlite

// schemaV1 is the baseline schema (version 1): issues, dependencies,
// events, comments, labels, and the config cell. Later versions are applied
// by migrations.go in ascending order.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	priority INTEGER NOT NULL DEFAULT 2 CHECK (priority >= 0 AND priority <= 4),
	type TEXT NOT NULL DEFAULT 'task',
	parent_id TEXT REFERENCES issues(id),
	assignee TEXT NOT NULL DEFAULT '',
	fields TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	closed_at DATETIME
);

CREATE TABLE IF NOT EXISTS dependencies (
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	depends_on_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	kind TEXT NOT NULL DEFAULT 'blocks',
	created_at DATETIME NOT NULL,
	PRIMARY KEY (issue_id, depends_on_id)
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	comment TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS labels (
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	label TEXT NOT NULL,
	PRIMARY KEY (issue_id, label)
);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_parent ON issues(parent_id);
CREATE INDEX IF NOT EXISTS idx_issues_assignee ON issues(assignee);
CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON dependencies(depends_on_id);
`

// schemaV2 adds full-text search over title and description. The FTS table
// uses external content so the issue rows stay authoritative; triggers keep
// the index in sync.
const schemaV2 = `
CREATE VIRTUAL TABLE IF NOT EXISTS issues_fts USING fts5(
	title, description,
	content='issues', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS issues_fts_ai AFTER INSERT ON issues BEGIN
	INSERT INTO issues_fts(rowid, title, description)
	VALUES (new.rowid, new.title, new.description);
END;

CREATE TRIGGER IF NOT EXISTS issues_fts_ad AFTER DELETE ON issues BEGIN
	INSERT INTO issues_fts(issues_fts, rowid, title, description)
	VALUES ('delete', old.rowid, old.title, old.description);
END;

CREATE TRIGGER IF NOT EXISTS issues_fts_au AFTER UPDATE OF title, description ON issues BEGIN
	INSERT INTO issues_fts(issues_fts, rowid, title, description)
	VALUES ('delete', old.rowid, old.title, old.description);
	INSERT INTO issues_fts(rowid, title, description)
	VALUES (new.rowid, new.title, new.description);
END;
`

// schemaV4 adds the composite indexes that back the hot list queries.
const schemaV4 = `
CREATE INDEX IF NOT EXISTS idx_issues_status_priority_created
	ON issues(status, priority, created_at);
CREATE INDEX IF NOT EXISTS idx_dependencies_pair
	ON dependencies(issue_id, depends_on_id);
CREATE INDEX IF NOT EXISTS idx_events_issue_created
	ON events(issue_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comments_issue_created
	ON comments(issue_id, created_at);
`

// schemaV5 introduces data-driven workflow templates: per-type definitions
// and the packs they ship in. Definitions are stored as JSON.
const schemaV5 = `
CREATE TABLE IF NOT EXISTS type_templates (
	type TEXT PRIMARY KEY,
	pack TEXT NOT NULL DEFAULT 'custom',
	definition TEXT NOT NULL,
	is_builtin INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS packs (
	name TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	definition TEXT NOT NULL,
	is_builtin INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1
);
`

package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// schemaStatements create the rule snapshot schema. They are portable
// across SQLite and Postgres and are executed one at a time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,

	// Procedure-to-Procedure edits, directional on (column1, column2).
	`CREATE TABLE IF NOT EXISTS ptp_edits (
		column1 TEXT NOT NULL,
		column2 TEXT NOT NULL,
		modifier_indicator TEXT NOT NULL DEFAULT '',
		effective_date TEXT NOT NULL DEFAULT '',
		deletion_date TEXT NOT NULL DEFAULT '',
		provider_type TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ptp_pair ON ptp_edits(column1, column2)`,

	`CREATE TABLE IF NOT EXISTS mue_limits (
		code TEXT NOT NULL,
		max_units INTEGER NOT NULL,
		effective_date TEXT NOT NULL DEFAULT '',
		service_type TEXT NOT NULL DEFAULT '',
		adjudication_indicator TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mue_code ON mue_limits(code)`,

	`CREATE TABLE IF NOT EXISTS aoc_edits (
		add_on_code TEXT NOT NULL,
		primary_code TEXT NOT NULL,
		effective_date TEXT NOT NULL DEFAULT '',
		deletion_date TEXT NOT NULL DEFAULT '',
		edit_type TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_aoc_add_on ON aoc_edits(add_on_code)`,

	// Provenance of each kind per build. Kept across builds for status.
	`CREATE TABLE IF NOT EXISTS snapshot_builds (
		build_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		source_files TEXT NOT NULL DEFAULT '[]',
		row_count INTEGER NOT NULL,
		digest TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		PRIMARY KEY (build_id, kind)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_builds_kind ON snapshot_builds(kind, finished_at)`,
}

const insertSchemaVersion = `INSERT INTO schema_version (version) VALUES (?) ON CONFLICT DO NOTHING`

const getSchemaVersion = `SELECT MAX(version) FROM schema_version`

// Column lists in canonical order. Digests and inserts depend on them.
const (
	ptpColumns = "column1, column2, modifier_indicator, effective_date, deletion_date, provider_type, rationale, source_file"
	mueColumns = "code, max_units, effective_date, service_type, adjudication_indicator, rationale, source_file"
	aocColumns = "add_on_code, primary_code, effective_date, deletion_date, edit_type, source_file"
)

// Package storage implements the relational persistence layer: connection
// setup, schema migration, the transactional Unit of Work, and repositories
// for every table named in the external interface's persisted state layout.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open opens a modernc.org/sqlite-backed database at path (use ":memory:"
// for tests) and applies the schema migrations.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not support concurrent writers well
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id       TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	title         TEXT NOT NULL,
	status        TEXT NOT NULL,
	current_step  TEXT NOT NULL DEFAULT '',
	roadmap_id    TEXT,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	completed_at  TIMESTAMP,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS roadmaps (
	roadmap_id                   TEXT PRIMARY KEY,
	user_id                      TEXT NOT NULL,
	title                        TEXT NOT NULL,
	total_concepts               INTEGER NOT NULL DEFAULT 0,
	total_hours                  REAL NOT NULL DEFAULT 0,
	recommended_completion_weeks INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS stages (
	stage_id        TEXT PRIMARY KEY,
	roadmap_id      TEXT NOT NULL REFERENCES roadmaps(roadmap_id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	estimated_hours REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS modules (
	module_id            TEXT PRIMARY KEY,
	stage_id             TEXT NOT NULL REFERENCES stages(stage_id) ON DELETE CASCADE,
	position             INTEGER NOT NULL,
	name                 TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	learning_objectives  TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS concepts (
	concept_id       TEXT PRIMARY KEY,
	module_id        TEXT NOT NULL REFERENCES modules(module_id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	difficulty       TEXT NOT NULL DEFAULT '',
	keywords         TEXT NOT NULL DEFAULT '[]',
	content_status   TEXT NOT NULL DEFAULT 'pending',
	resources_status TEXT NOT NULL DEFAULT 'pending',
	quiz_status      TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS intent_analyses (
	task_id                   TEXT PRIMARY KEY REFERENCES tasks(task_id) ON DELETE CASCADE,
	parsed_goal               TEXT NOT NULL DEFAULT '',
	key_technologies          TEXT NOT NULL DEFAULT '[]',
	difficulty_profile        TEXT NOT NULL DEFAULT '',
	time_constraint           TEXT NOT NULL DEFAULT '',
	skill_gap_analysis        TEXT NOT NULL DEFAULT '[]',
	personalized_suggestions  TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS validation_results (
	task_id                  TEXT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
	roadmap_id               TEXT NOT NULL,
	overall_score            REAL NOT NULL DEFAULT 0,
	dimension_scores         TEXT NOT NULL DEFAULT '[]',
	issues                   TEXT NOT NULL DEFAULT '[]',
	improvement_suggestions  TEXT NOT NULL DEFAULT '[]',
	validation_round         INTEGER NOT NULL,
	is_valid                 INTEGER NOT NULL,
	validation_summary       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (task_id, validation_round)
);

CREATE TABLE IF NOT EXISTS edit_records (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id           TEXT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
	roadmap_id        TEXT NOT NULL,
	edit_source       TEXT NOT NULL,
	modified_node_ids TEXT NOT NULL DEFAULT '[]',
	created_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tutorials (
	concept_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	content    TEXT NOT NULL,
	PRIMARY KEY (concept_id, version)
);

CREATE TABLE IF NOT EXISTS resources (
	concept_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	items      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (concept_id, version)
);

CREATE TABLE IF NOT EXISTS quizzes (
	concept_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	items      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (concept_id, version)
);

CREATE TABLE IF NOT EXISTS execution_logs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id     TEXT NOT NULL,
	level       TEXT NOT NULL,
	category    TEXT NOT NULL,
	step        TEXT NOT NULL DEFAULT '',
	agent_name  TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL,
	details     TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_logs_task ON execution_logs(task_id, created_at, id);

CREATE TABLE IF NOT EXISTS checkpoints (
	task_id    TEXT NOT NULL,
	sequence   INTEGER NOT NULL,
	node       TEXT NOT NULL,
	suspended  INTEGER NOT NULL DEFAULT 0,
	snapshot   BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (task_id, sequence)
);
`

// Migrate applies the (idempotent, CREATE-IF-NOT-EXISTS) schema.
func Migrate(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}

package localstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// schema creates every table the client's relational store needs. Kept as
// a single idempotent DDL block rather than a migration chain — the
// client database is disposable local cache, not a system of record.
const schema = `
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	trace_id TEXT NOT NULL,
	status TEXT NOT NULL,
	local_path TEXT NOT NULL,
	object_key TEXT NOT NULL DEFAULT '',
	md5 TEXT NOT NULL DEFAULT '',
	original_size INTEGER NOT NULL DEFAULT 0,
	compressed_size INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	uploaded_at TEXT,
	processed_at TEXT,
	error TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_images_status ON images(status);
CREATE INDEX IF NOT EXISTS idx_images_user_md5 ON images(user_id, md5);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	image_id TEXT,
	amount INTEGER NOT NULL,
	type TEXT NOT NULL,
	date TEXT NOT NULL,
	merchant TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 0,
	dirty INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	confirmed_at TEXT,
	ttl INTEGER
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_dirty ON transactions(user_id, dirty);

CREATE TABLE IF NOT EXISTS offline_queue (
	id TEXT PRIMARY KEY,
	action_type TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	payload TEXT NOT NULL
);
`

// Open opens (creating if absent) the SQLite database file at path and
// applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}

	// modernc.org/sqlite serializes all access through a single connection
	// internally; a connection pool just adds lock contention against the
	// same file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: apply schema: %w", err)
	}

	return db, nil
}

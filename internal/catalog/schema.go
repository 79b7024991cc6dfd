package catalog

import (
	"context"
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL CHECK (title <> ''),
			artist TEXT,
			album TEXT,
			genre TEXT,
			year INTEGER,
			track_number INTEGER,
			duration INTEGER,
			composer TEXT,
			lyricist TEXT,
			cover_art TEXT,
			comments TEXT,
			file_path TEXT NOT NULL CHECK (file_path <> ''),
			bpm REAL,
			musical_key TEXT,
			date_created INTEGER NOT NULL,
			row_order INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_row_order ON tracks(row_order);

		CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			set_name TEXT NOT NULL CHECK (set_name <> ''),
			venue TEXT,
			city TEXT,
			state_name TEXT,
			date_played TEXT,
			date_created INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS collection_tracks (
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			PRIMARY KEY (collection_id, track_id)
		);

		CREATE INDEX IF NOT EXISTS idx_collection_tracks_track ON collection_tracks(track_id);
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}

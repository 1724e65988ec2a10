package store

import "fmt"

// runMigrations creates the schema if it does not exist yet.
func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			department TEXT NOT NULL,
			batch_year INTEGER NOT NULL,
			sections TEXT NOT NULL DEFAULT '',
			threshold REAL NOT NULL,
			image_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'processing',
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			register_number TEXT NOT NULL,
			name TEXT NOT NULL,
			present INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			section TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			detection_method TEXT NOT NULL DEFAULT 'camera',
			predicted_at DATETIME NOT NULL,
			UNIQUE(session_id, register_number),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS processed_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			image_index INTEGER NOT NULL,
			face_count INTEGER NOT NULL DEFAULT 0,
			matched_count INTEGER NOT NULL DEFAULT 0,
			process_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			annotated BLOB,
			UNIQUE(session_id, image_index),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			register_number TEXT NOT NULL,
			present INTEGER NOT NULL DEFAULT 0,
			was_edited INTEGER NOT NULL DEFAULT 0,
			submitted_by TEXT NOT NULL DEFAULT '',
			period TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			UNIQUE(session_id, register_number),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_session ON predictions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_images_session ON processed_images(session_id)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	return nil
}

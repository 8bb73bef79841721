package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per video run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			part TEXT NOT NULL,
			source TEXT NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// Frame landmarks table - landmark set of each processed frame as JSON
		`CREATE TABLE IF NOT EXISTS frame_landmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame_index INTEGER NOT NULL,
			captured_at DATETIME NOT NULL,
			landmarks TEXT NOT NULL,
			UNIQUE(session_id, frame_index)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_frame_landmarks_session_id ON frame_landmarks(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

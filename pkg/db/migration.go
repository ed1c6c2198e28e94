package db

// createTable creates the versions table if it doesn't exist
func (s *PostgresVersionStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS versions (
		seq BIGSERIAL PRIMARY KEY,
		id VARCHAR(36) NOT NULL UNIQUE,
		timestamp_text VARCHAR(16) NOT NULL,
		added_words TEXT[] NOT NULL DEFAULT '{}',
		removed_words TEXT[] NOT NULL DEFAULT '{}',
		old_length INTEGER NOT NULL,
		new_length INTEGER NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_versions_created_at ON versions(created_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// createTable creates the versions table if it doesn't exist. Word lists
// are stored as JSON arrays.
func (s *SQLiteVersionStore) createTable() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS versions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			timestamp_text TEXT NOT NULL,
			added_words TEXT NOT NULL DEFAULT '[]',
			removed_words TEXT NOT NULL DEFAULT '[]',
			old_length INTEGER NOT NULL,
			new_length INTEGER NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_created_at ON versions(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite audit store of refresh cycles and tune events
type DB struct {
	db *sql.DB
}

// New creates and initializes a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := optimizeSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to optimize database: %w", err)
	}

	database := &DB{db: db}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// optimizeSQLite tunes SQLite for a small always-on box writing little and often
func optimizeSQLite(db *sql.DB) error {
	// WAL lets the HTTP handlers read while the collector writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA cache_size=-16000"); err != nil {
		return fmt.Errorf("failed to set cache size: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA temp_store=MEMORY"); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// RefreshRepository returns the repository of refresh cycles
func (d *DB) RefreshRepository() RefreshRepository {
	return NewRefreshRepository(d.db)
}

// TuneEventRepository returns the repository of tune events
func (d *DB) TuneEventRepository() TuneEventRepository {
	return NewTuneEventRepository(d.db)
}

// initSchema creates the database schema if it doesn't exist
func (d *DB) initSchema() error {
	refreshSchema := `CREATE TABLE IF NOT EXISTS refreshes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		bytes INTEGER NOT NULL,
		clients INTEGER NOT NULL,
		atc INTEGER NOT NULL,
		servers INTEGER NOT NULL,
		airports INTEGER NOT NULL,
		dropped INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	tuneEventSchema := `CREATE TABLE IF NOT EXISTS tune_events (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		action TEXT NOT NULL,
		frequency TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		channel TEXT,
		station_name TEXT,
		matched_key TEXT,
		alternate INTEGER NOT NULL DEFAULT 0,
		snapshot_id TEXT,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_refreshes_fetched_at ON refreshes(fetched_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tune_events_timestamp ON tune_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_tune_events_channel ON tune_events(channel)`,
	}

	if _, err := d.db.Exec(refreshSchema); err != nil {
		return fmt.Errorf("failed to create refreshes table: %w", err)
	}

	if _, err := d.db.Exec(tuneEventSchema); err != nil {
		return fmt.Errorf("failed to create tune_events table: %w", err)
	}

	for _, idx := range indexes {
		if _, err := d.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

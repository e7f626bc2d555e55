package database

import (
	"database/sql"
	"errors"
	"fmt"

	"atc_trmnl/internal/models"
)

type RefreshRepository interface {
	Insert(r *models.Refresh) error
	Latest() (*models.Refresh, error)
	Count() (int, error)
}

type refreshRepository struct {
	db *sql.DB
}

func NewRefreshRepository(db *sql.DB) RefreshRepository {
	return &refreshRepository{db: db}
}

// Insert records one refresh cycle. A snapshot id already stored is ignored.
func (r *refreshRepository) Insert(ref *models.Refresh) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO refreshes (
		snapshot_id, source, fetched_at, bytes, clients, atc, servers, airports, dropped
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.SnapshotID, ref.Source, ref.FetchedAt, ref.Bytes,
		ref.Clients, ref.ATC, ref.Servers, ref.Airports, ref.Dropped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh: %w", err)
	}
	return nil
}

// Latest returns the most recent refresh, or nil when none was recorded
func (r *refreshRepository) Latest() (*models.Refresh, error) {
	ref := &models.Refresh{}
	err := r.db.QueryRow(`SELECT snapshot_id, source, fetched_at, bytes, clients, atc, servers, airports, dropped
		FROM refreshes ORDER BY id DESC LIMIT 1`).Scan(
		&ref.SnapshotID, &ref.Source, &ref.FetchedAt, &ref.Bytes,
		&ref.Clients, &ref.ATC, &ref.Servers, &ref.Airports, &ref.Dropped,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest refresh: %w", err)
	}
	return ref, nil
}

func (r *refreshRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM refreshes").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count refreshes: %w", err)
	}
	return n, nil
}

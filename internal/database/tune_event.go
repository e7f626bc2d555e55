package database

import (
	"database/sql"
	"fmt"

	"atc_trmnl/internal/models"
)

type TuneEventRepository interface {
	InsertBatch(events []*models.TuneEvent) error
	Recent(limit int) ([]*models.TuneEvent, error)
}

type tuneEventRepository struct {
	db *sql.DB
}

func NewTuneEventRepository(db *sql.DB) TuneEventRepository {
	return &tuneEventRepository{db: db}
}

// InsertBatch inserts one or more tune events in a single transaction
func (r *tuneEventRepository) InsertBatch(events []*models.TuneEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO tune_events (
		id, timestamp, action, frequency, latitude, longitude,
		channel, station_name, matched_key, alternate, snapshot_id, reason
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(
			ev.ID, ev.Timestamp, string(ev.Action), ev.Frequency,
			ev.Position.Latitude, ev.Position.Longitude,
			ev.Channel, ev.StationName, ev.MatchedKey, ev.Alternate,
			ev.SnapshotID, ev.Reason,
		); err != nil {
			return fmt.Errorf("failed to insert tune event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Recent returns up to limit events, newest first
func (r *tuneEventRepository) Recent(limit int) ([]*models.TuneEvent, error) {
	rows, err := r.db.Query(`SELECT id, timestamp, action, frequency, latitude, longitude,
		channel, station_name, matched_key, alternate, snapshot_id, reason
		FROM tune_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tune events: %w", err)
	}
	defer rows.Close()

	var events []*models.TuneEvent
	for rows.Next() {
		ev := &models.TuneEvent{}
		var action string
		if err := rows.Scan(
			&ev.ID, &ev.Timestamp, &action, &ev.Frequency,
			&ev.Position.Latitude, &ev.Position.Longitude,
			&ev.Channel, &ev.StationName, &ev.MatchedKey, &ev.Alternate,
			&ev.SnapshotID, &ev.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tune event: %w", err)
		}
		ev.Action = models.TuneAction(action)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tune events: %w", err)
	}
	return events, nil
}

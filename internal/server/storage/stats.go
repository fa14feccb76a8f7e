package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// GetStats reads the game counter
func (s *Store) GetStats() (*StatsRecord, error) {
	return readStats(s.db.QueryRow(`SELECT total_games, last_updated FROM stats WHERE id = 1`))
}

// IncrementStats bumps the counter inside one transaction and returns the
// new value
func (s *Store) IncrementStats() (*StatsRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`INSERT INTO stats (id, total_games, last_updated) VALUES (1, 1, ?)
		ON CONFLICT(id) DO UPDATE SET total_games = total_games + 1, last_updated = excluded.last_updated`, now); err != nil {
		return nil, fmt.Errorf("failed to increment stats: %w", err)
	}

	rec, err := readStats(tx.QueryRow(`SELECT total_games, last_updated FROM stats WHERE id = 1`))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return rec, nil
}

func readStats(row *sql.Row) (*StatsRecord, error) {
	var rec StatsRecord
	if err := row.Scan(&rec.TotalGames, &rec.LastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return &StatsRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &rec, nil
}

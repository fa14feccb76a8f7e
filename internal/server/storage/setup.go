package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutSetup stores or replaces the setup blob for a match
func (s *Store) PutSetup(matchID string, data []byte) error {
	query := `INSERT INTO setups (match_id, setup_data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET setup_data = excluded.setup_data, updated_at = excluded.updated_at`
	if _, err := s.db.Exec(query, matchID, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save setup: %w", err)
	}
	return nil
}

// GetSetup returns the setup blob or ErrNotFound
func (s *Store) GetSetup(matchID string) (*SetupRecord, error) {
	var rec SetupRecord
	query := `SELECT match_id, setup_data, updated_at FROM setups WHERE match_id = ?`
	err := s.db.QueryRow(query, matchID).Scan(&rec.MatchID, &rec.SetupData, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read setup: %w", err)
	}
	return &rec, nil
}

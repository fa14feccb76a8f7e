package storage

import (
	"database/sql"
	"fmt"
)

// RecordInvocation asynchronously appends one live call to the log
func (s *Store) RecordInvocation(record InvocationRecord) error {
	if !s.healthStatus.Load() {
		return nil // Silently drop if degraded
	}

	select {
	case s.writeChan <- func(tx *sql.Tx) error {
		query := `INSERT INTO invocations (
			class, archive_group, artifact_id, board_size, turn,
			move_row, move_col, return_value, elapsed_us, timed_out, fault, invoked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.Class, record.ArchiveGroup, record.ArtifactID, record.BoardSize, record.Turn,
			record.Row, record.Col, record.ReturnValue, record.ElapsedMicros,
			record.TimedOut, record.Fault, record.InvokedAt,
		)
		return err
	}:
		return nil
	default:
		// Channel full, drop write
		s.logger.Warn().Msg("storage write queue full, dropping invocation record")
		return nil
	}
}

// QueryInvocations lists logged calls newest first with optional filters
func (s *Store) QueryInvocations(class, artifactID string, limit int) ([]InvocationRecord, error) {
	query := `SELECT
		invocation_id, class, archive_group, artifact_id, board_size, turn,
		move_row, move_col, return_value, elapsed_us, timed_out, fault, invoked_at
	FROM invocations WHERE 1=1`

	var args []interface{}

	if class != "" && class != "*" {
		query += " AND class = ?"
		args = append(args, class)
	}

	if artifactID != "" && artifactID != "*" {
		query += " AND artifact_id = ?"
		args = append(args, artifactID)
	}

	query += " ORDER BY invocation_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []InvocationRecord
	for rows.Next() {
		var r InvocationRecord
		err := rows.Scan(
			&r.InvocationID, &r.Class, &r.ArchiveGroup, &r.ArtifactID, &r.BoardSize, &r.Turn,
			&r.Row, &r.Col, &r.ReturnValue, &r.ElapsedMicros, &r.TimedOut, &r.Fault, &r.InvokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return out, nil
}

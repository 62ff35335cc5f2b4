package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// HasScore reports whether the opportunity already carries a score of the
// given type. The scoring pipeline treats an existing "AI" score as
// already handled and never overwrites it.
func (db *DB) HasScore(opportunityID int64, scoreType string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM opportunity_scores WHERE opportunity_id = ? AND score_type = ?",
		opportunityID, scoreType,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertScores inserts a batch of scores in one transaction, preserving
// slice order. Returns the number of rows inserted.
func (db *DB) InsertScores(scores []*Score) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO opportunity_scores
		(opportunity_id, score_type, score_value, confidence, metadata)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, s := range scores {
		metadata, err := marshalMetadata(s.Metadata)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.Exec(s.OpportunityID, s.ScoreType, s.ScoreValue, s.Confidence, metadata); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(scores), nil
}

// FindScoresAtOrAbove returns scores with value >= threshold created at or
// after the given time, oldest first.
func (db *DB) FindScoresAtOrAbove(threshold int, since time.Time) ([]Score, error) {
	rows, err := db.conn.Query(
		`SELECT id, opportunity_id, score_type, score_value, confidence, metadata, created_at
		FROM opportunity_scores WHERE score_value >= ? AND created_at >= ?
		ORDER BY created_at ASC, id ASC`,
		threshold, sqliteTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

// CountScoresCreatedBetween counts scores created in [start, end).
func (db *DB) CountScoresCreatedBetween(start, end time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM opportunity_scores WHERE created_at >= ? AND created_at < ?",
		sqliteTime(start), sqliteTime(end),
	).Scan(&count)
	return count, err
}

// CountScoresInRange counts scores with lo <= value <= hi created in [start, end).
func (db *DB) CountScoresInRange(lo, hi int, start, end time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM opportunity_scores
		WHERE score_value >= ? AND score_value <= ? AND created_at >= ? AND created_at < ?`,
		lo, hi, sqliteTime(start), sqliteTime(end),
	).Scan(&count)
	return count, err
}

func scanScores(rows *sql.Rows) ([]Score, error) {
	var scores []Score
	for rows.Next() {
		var s Score
		var metadata sql.NullString
		if err := rows.Scan(&s.ID, &s.OpportunityID, &s.ScoreType, &s.ScoreValue,
			&s.Confidence, &metadata, &s.CreatedAt); err != nil {
			return nil, err
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &s.Metadata); err != nil {
				// Malformed metadata should not hide the score itself.
				s.Metadata = nil
			}
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func marshalMetadata(m map[string]string) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

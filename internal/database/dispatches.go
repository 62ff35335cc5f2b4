package database

import "time"

// WasDispatched reports whether an alert was already sent for this score.
// Consulted before sending so re-running the alert job inside the same
// lookback window does not resend notifications.
func (db *DB) WasDispatched(scoreID int64) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM alert_dispatches WHERE score_id = ?", scoreID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkDispatched records that an alert was sent for this score.
func (db *DB) MarkDispatched(scoreID int64) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO alert_dispatches (score_id) VALUES (?)", scoreID,
	)
	return err
}

// CountDispatchesBetween counts alerts dispatched in [start, end).
func (db *DB) CountDispatchesBetween(start, end time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM alert_dispatches WHERE dispatched_at >= ? AND dispatched_at < ?",
		sqliteTime(start), sqliteTime(end),
	).Scan(&count)
	return count, err
}

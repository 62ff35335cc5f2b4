package database

// InsertSyncLog records a completed pipeline or scheduler run.
func (db *DB) InsertSyncLog(entry *SyncLog) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO sync_logs (run_id, sync_type, status, records_processed, error_count, error_log, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.SyncType, entry.Status, entry.RecordsProcessed,
		entry.ErrorCount, entry.ErrorLog, entry.StartedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// RecentSyncLogs returns the most recent run log entries, newest first.
func (db *DB) RecentSyncLogs(limit int) ([]SyncLog, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, sync_type, status, records_processed, error_count, error_log, started_at, completed_at
		FROM sync_logs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SyncLog
	for rows.Next() {
		var e SyncLog
		if err := rows.Scan(&e.ID, &e.RunID, &e.SyncType, &e.Status, &e.RecordsProcessed,
			&e.ErrorCount, &e.ErrorLog, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

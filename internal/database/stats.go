package database

// GetStats returns aggregate statistics for the status command.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM opportunities", &stats.Opportunities},
		{"SELECT COUNT(*) FROM agencies", &stats.Agencies},
		{"SELECT COUNT(*) FROM opportunity_scores", &stats.Scores},
		{"SELECT COUNT(*) FROM opportunity_scores WHERE score_value >= 80", &stats.HighScores},
		{"SELECT COUNT(*) FROM sync_logs", &stats.SyncLogs},
		{"SELECT COUNT(*) FROM alert_dispatches", &stats.AlertsDispatched},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

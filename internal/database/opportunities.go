package database

import (
	"database/sql"
	"time"
)

const opportunityColumns = `id, notice_id, title, solicitation_number, description, notice_type,
	posted_date, response_deadline, naics_code, set_aside, classification_code, agency_id,
	office_name, pop_city, pop_state, pop_country, pop_zip, archive_type, ui_link,
	additional_info_link, is_active, created_at`

// ExistsByNoticeID reports whether an opportunity with the given notice ID
// is already stored. Notice ID is the natural key for imports.
func (db *DB) ExistsByNoticeID(noticeID string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM opportunities WHERE notice_id = ?", noticeID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertOpportunities inserts a batch of opportunities in one transaction.
// Rows violating the notice_id uniqueness constraint are ignored, so a
// concurrent import of the same key cannot create a duplicate.
// Returns the number of rows actually inserted.
func (db *DB) InsertOpportunities(opps []*Opportunity) (int, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO opportunities
		(notice_id, title, solicitation_number, description, notice_type, posted_date,
		response_deadline, naics_code, set_aside, classification_code, agency_id,
		office_name, pop_city, pop_state, pop_country, pop_zip, archive_type,
		ui_link, additional_info_link, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, o := range opps {
		active := 0
		if o.IsActive {
			active = 1
		}
		result, err := stmt.Exec(
			o.NoticeID, o.Title, o.SolicitationNumber, o.Description, o.NoticeType,
			o.PostedDate, o.ResponseDeadline, o.NAICSCode, o.SetAside, o.ClassificationCode,
			o.AgencyID, o.OfficeName, o.PoPCity, o.PoPState, o.PoPCountry, o.PoPZip,
			o.ArchiveType, o.UILink, o.AdditionalInfoLink, active,
		)
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListOpportunityPage returns one page of opportunities ordered by
// posted_date descending (most recent notices scored first).
func (db *DB) ListOpportunityPage(limit, offset int) ([]Opportunity, error) {
	rows, err := db.conn.Query(
		`SELECT `+opportunityColumns+` FROM opportunities
		ORDER BY posted_date DESC, id ASC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// GetOpportunityByID returns a single opportunity by ID, or nil if absent.
func (db *DB) GetOpportunityByID(id int64) (*Opportunity, error) {
	row := db.conn.QueryRow(
		`SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id,
	)
	o, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CountOpportunitiesCreatedBetween counts opportunities created in [start, end).
func (db *DB) CountOpportunitiesCreatedBetween(start, end time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM opportunities WHERE created_at >= ? AND created_at < ?",
		sqliteTime(start), sqliteTime(end),
	).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunityFrom(s rowScanner) (*Opportunity, error) {
	var o Opportunity
	var active int
	if err := s.Scan(&o.ID, &o.NoticeID, &o.Title, &o.SolicitationNumber, &o.Description,
		&o.NoticeType, &o.PostedDate, &o.ResponseDeadline, &o.NAICSCode, &o.SetAside,
		&o.ClassificationCode, &o.AgencyID, &o.OfficeName, &o.PoPCity, &o.PoPState,
		&o.PoPCountry, &o.PoPZip, &o.ArchiveType, &o.UILink, &o.AdditionalInfoLink,
		&active, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.IsActive = active != 0
	return &o, nil
}

func scanOpportunities(rows *sql.Rows) ([]Opportunity, error) {
	var opps []Opportunity
	for rows.Next() {
		o, err := scanOpportunityFrom(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, *o)
	}
	return opps, rows.Err()
}

func scanOpportunity(row *sql.Row) (*Opportunity, error) {
	return scanOpportunityFrom(row)
}

package database

import (
	"database/sql"
	"strings"
)

// FindAgenciesMatching returns agencies whose name contains the given text,
// case-insensitively. Exact name matches sort first, then insertion order
// (id ascending) breaks ties, so the first element is the deterministic
// winner for find-or-create resolution.
func (db *DB) FindAgenciesMatching(name string) ([]Agency, error) {
	pattern := "%" + escapeLike(name) + "%"
	rows, err := db.conn.Query(
		`SELECT id, name, abbreviation, department, tier, is_active, created_at
		FROM agencies WHERE name LIKE ? ESCAPE '\'
		ORDER BY (LOWER(name) = LOWER(?)) DESC, id ASC`,
		pattern, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agencies []Agency
	for rows.Next() {
		var a Agency
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &a.Abbreviation, &a.Department, &a.Tier,
			&active, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.IsActive = active != 0
		agencies = append(agencies, a)
	}
	return agencies, rows.Err()
}

// InsertAgency inserts an agency and returns its ID.
func (db *DB) InsertAgency(a *Agency) (int64, error) {
	active := 0
	if a.IsActive {
		active = 1
	}
	result, err := db.conn.Exec(
		`INSERT INTO agencies (name, abbreviation, department, tier, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		a.Name, a.Abbreviation, a.Department, a.Tier, active,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAgencyByID returns a single agency by ID, or nil if absent.
func (db *DB) GetAgencyByID(id int64) (*Agency, error) {
	var a Agency
	var active int
	err := db.conn.QueryRow(
		`SELECT id, name, abbreviation, department, tier, is_active, created_at
		FROM agencies WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Abbreviation, &a.Department, &a.Tier, &active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	return &a, nil
}

// escapeLike escapes LIKE wildcards so user-supplied department names
// match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

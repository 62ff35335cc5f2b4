// Package agency resolves free-text department names to stored agencies,
// creating them lazily on first encounter.
package agency

import (
	"strings"

	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/database"
)

const maxAbbreviationLen = 10

// Resolver finds or creates agencies by department name.
type Resolver struct {
	db     *database.DB
	logger *zap.Logger
}

// NewResolver creates a new agency resolver.
func NewResolver(db *database.DB, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, logger: logger}
}

// Resolve returns the agency for a free-text department name, creating it
// if no existing agency matches. Matching is case-insensitive substring
// with a deterministic tie-break: an exact name match wins, otherwise the
// earliest-inserted match (lowest id). A blank name resolves to nil
// without error; the caller leaves the opportunity's agency unset.
func (r *Resolver) Resolve(departmentName, tierHint string) (*database.Agency, error) {
	departmentName = strings.TrimSpace(departmentName)
	if departmentName == "" {
		return nil, nil
	}

	matches, err := r.db.FindAgenciesMatching(departmentName)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return &matches[0], nil
	}

	abbrev := Abbreviate(departmentName)
	a := &database.Agency{
		Name:         departmentName,
		Abbreviation: &abbrev,
		Department:   &departmentName,
		IsActive:     true,
	}
	if tierHint != "" {
		a.Tier = &tierHint
	}

	id, err := r.db.InsertAgency(a)
	if err != nil {
		return nil, err
	}
	a.ID = id

	r.logger.Debug("created agency",
		zap.String("name", departmentName),
		zap.String("abbreviation", abbrev),
	)
	return a, nil
}

// Abbreviate derives a short agency abbreviation: the uppercase first
// character of each whitespace-delimited word, truncated to 10 characters.
// Deterministic for a given input name.
func Abbreviate(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		first := []rune(word)[0]
		b.WriteString(strings.ToUpper(string(first)))
	}
	abbrev := []rune(b.String())
	if len(abbrev) > maxAbbreviationLen {
		abbrev = abbrev[:maxAbbreviationLen]
	}
	return string(abbrev)
}

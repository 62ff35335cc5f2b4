// Package importer loads cached SAM.gov opportunity JSON documents into
// the store: whole-array parse, chunked conversion with per-document skip,
// duplicate detection on notice ID, batch writes.
package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/agency"
	"github.com/fedscout/fedscout/internal/database"
)

const defaultChunkSize = 50

// Document is one raw SAM.gov opportunity record as found in the cached
// JSON exports. All fields are optional in the source data.
type Document struct {
	NoticeID           string    `json:"noticeId"`
	SolicitationNumber string    `json:"solicitationNumber"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Department         string    `json:"department"`
	SubTier            string    `json:"subTier"`
	Office             string    `json:"office"`
	PostedDate         string    `json:"postedDate"`
	ResponseDeadline   string    `json:"responseDeadline"`
	NaicsCode          string    `json:"naicsCode"`
	SetAside           string    `json:"setAside"`
	NoticeType         string    `json:"noticeType"`
	ClassificationCode string    `json:"classificationCode"`
	PlaceOfPerformance *PlaceDoc `json:"placeOfPerformance"`
	Active             string    `json:"active"`
	Archive            string    `json:"archive"`
	UILink             string    `json:"uiLink"`
	AdditionalInfoLink string    `json:"additionalInfoLink"`
}

// PlaceDoc is the place-of-performance sub-object.
type PlaceDoc struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
}

// Result holds the results of an import run.
type Result struct {
	Total     int
	Succeeded int
	Skipped   int
}

// Importer converts raw opportunity documents into stored records.
type Importer struct {
	db        *database.DB
	resolver  *agency.Resolver
	logger    *zap.Logger
	chunkSize int
}

// New creates an importer. chunkSize <= 0 falls back to the default of 50.
func New(db *database.DB, resolver *agency.Resolver, logger *zap.Logger, chunkSize int) *Importer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Importer{db: db, resolver: resolver, logger: logger, chunkSize: chunkSize}
}

// Run imports from a JSON file or a directory of *.json files. A missing
// source or an unparseable top-level array is fatal for the whole run;
// per-document problems are skips, never aborts.
func (i *Importer) Run(source string) (*Result, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("import source: %w", err)
	}

	var docs []Document
	if info.IsDir() {
		docs, err = i.readDirectory(source)
	} else {
		docs, err = readFile(source)
	}
	if err != nil {
		return nil, err
	}

	return i.importDocuments(docs)
}

// RunReader imports from an already-open JSON array stream.
func (i *Importer) RunReader(r io.Reader) (*Result, error) {
	docs, err := decodeDocuments(r, "stream")
	if err != nil {
		return nil, err
	}
	return i.importDocuments(docs)
}

func (i *Importer) readDirectory(dir string) ([]Document, error) {
	var all []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		docs, err := readFile(path)
		if err != nil {
			return err
		}
		i.logger.Info("loaded opportunity documents",
			zap.String("file", filepath.Base(path)),
			zap.Int("count", len(docs)),
		)
		all = append(all, docs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func readFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("import source: %w", err)
	}
	defer f.Close()
	return decodeDocuments(f, path)
}

func decodeDocuments(r io.Reader, name string) ([]Document, error) {
	var docs []Document
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return docs, nil
}

// importDocuments processes documents in bounded chunks. Each chunk is
// converted document by document and the surviving records written in one
// batch, so a skip never drops its neighbors.
func (i *Importer) importDocuments(docs []Document) (*Result, error) {
	result := &Result{Total: len(docs)}

	for start := 0; start < len(docs); start += i.chunkSize {
		end := start + i.chunkSize
		if end > len(docs) {
			end = len(docs)
		}

		var chunk []*database.Opportunity
		for _, doc := range docs[start:end] {
			opp, err := i.convert(doc)
			if err != nil {
				i.logger.Warn("skipping document",
					zap.String("solicitation", doc.SolicitationNumber),
					zap.Error(err),
				)
				continue
			}
			if opp == nil {
				// Duplicate notice ID.
				continue
			}
			chunk = append(chunk, opp)
		}

		inserted, err := i.db.InsertOpportunities(chunk)
		if err != nil {
			return nil, fmt.Errorf("writing chunk: %w", err)
		}
		result.Succeeded += inserted
	}

	result.Skipped = result.Total - result.Succeeded
	i.logger.Info("import complete",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// convert turns one raw document into a storable opportunity. Returns
// (nil, nil) for duplicates and an error for documents that cannot be
// converted; both are counted as skips by the caller.
func (i *Importer) convert(doc Document) (*database.Opportunity, error) {
	noticeID := doc.NoticeID
	if noticeID == "" {
		noticeID = doc.SolicitationNumber
	}
	if noticeID == "" {
		return nil, fmt.Errorf("document has no notice identifier")
	}

	exists, err := i.db.ExistsByNoticeID(noticeID)
	if err != nil {
		return nil, err
	}
	if exists {
		i.logger.Debug("skipping duplicate opportunity", zap.String("notice_id", noticeID))
		return nil, nil
	}

	noticeType := doc.NoticeType
	if noticeType == "" {
		noticeType = "Unknown"
	}

	opp := &database.Opportunity{
		NoticeID:           noticeID,
		Title:              doc.Title,
		NoticeType:         noticeType,
		SolicitationNumber: optional(doc.SolicitationNumber),
		Description:        optional(doc.Description),
		NAICSCode:          optional(doc.NaicsCode),
		SetAside:           optional(doc.SetAside),
		ClassificationCode: optional(doc.ClassificationCode),
		OfficeName:         optional(doc.Office),
		UILink:             optional(doc.UILink),
		AdditionalInfoLink: optional(doc.AdditionalInfoLink),
		IsActive:           strings.EqualFold(doc.Active, "Yes"),
	}

	if doc.PostedDate != "" {
		posted, err := dateparse.ParseIn(doc.PostedDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("posted date %q: %w", doc.PostedDate, err)
		}
		opp.PostedDate = optional(posted.Format("2006-01-02"))
	}

	if doc.ResponseDeadline != "" {
		// Date-only deadlines are interpreted as UTC midnight.
		deadline, err := dateparse.ParseIn(doc.ResponseDeadline, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("response deadline %q: %w", doc.ResponseDeadline, err)
		}
		opp.ResponseDeadline = optional(deadline.UTC().Format(time.RFC3339))
	}

	if pop := doc.PlaceOfPerformance; pop != nil {
		country := pop.Country
		if country == "" {
			country = "US"
		}
		opp.PoPCity = optional(pop.City)
		opp.PoPState = optional(pop.State)
		opp.PoPCountry = optional(country)
		opp.PoPZip = optional(pop.Zip)
	}

	if strings.EqualFold(doc.Archive, "Yes") {
		opp.ArchiveType = optional("archived")
	}

	if doc.Department != "" {
		a, err := i.resolver.Resolve(doc.Department, doc.SubTier)
		if err != nil {
			return nil, fmt.Errorf("resolving agency %q: %w", doc.Department, err)
		}
		if a != nil {
			opp.AgencyID = &a.ID
		}
	}

	return opp, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

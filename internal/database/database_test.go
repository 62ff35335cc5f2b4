package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func insertTestOpportunity(t *testing.T, db *DB, noticeID, title string) int64 {
	t.Helper()
	n, err := db.InsertOpportunities([]*Opportunity{{
		NoticeID:   noticeID,
		Title:      title,
		NoticeType: "Solicitation",
		PostedDate: ptr("2026-08-01"),
		IsActive:   true,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 insert, got %d", n)
	}
	opps, err := db.ListOpportunityPage(100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range opps {
		if o.NoticeID == noticeID {
			return o.ID
		}
	}
	t.Fatalf("inserted opportunity %s not found", noticeID)
	return 0
}

func TestInsertOpportunities(t *testing.T) {
	db := openTestDB(t)
	n, err := db.InsertOpportunities([]*Opportunity{
		{NoticeID: "N-001", Title: "Cloud Migration", NoticeType: "Solicitation"},
		{NoticeID: "N-002", Title: "Network Security", NoticeType: "Solicitation"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserts, got %d", n)
	}
}

func TestInsertDuplicateNoticeID(t *testing.T) {
	db := openTestDB(t)
	insertTestOpportunity(t, db, "N-DUP", "First")

	n, err := db.InsertOpportunities([]*Opportunity{
		{NoticeID: "N-DUP", Title: "Second", NoticeType: "Solicitation"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserts for duplicate notice_id, got %d", n)
	}
}

func TestExistsByNoticeID(t *testing.T) {
	db := openTestDB(t)
	insertTestOpportunity(t, db, "N-100", "Test")

	exists, err := db.ExistsByNoticeID("N-100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected N-100 to exist")
	}

	exists, err = db.ExistsByNoticeID("N-999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected N-999 to not exist")
	}
}

func TestListOpportunityPage(t *testing.T) {
	db := openTestDB(t)
	db.InsertOpportunities([]*Opportunity{
		{NoticeID: "N-1", Title: "Old", NoticeType: "Solicitation", PostedDate: ptr("2026-08-01")},
		{NoticeID: "N-2", Title: "New", NoticeType: "Solicitation", PostedDate: ptr("2026-08-20")},
		{NoticeID: "N-3", Title: "Middle", NoticeType: "Solicitation", PostedDate: ptr("2026-08-10")},
	})

	page, err := db.ListOpportunityPage(2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 opportunities, got %d", len(page))
	}
	if page[0].Title != "New" {
		t.Errorf("expected most recent first, got %q", page[0].Title)
	}

	page, err = db.ListOpportunityPage(2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("expected 1 opportunity on second page, got %d", len(page))
	}
}

func TestFindAgenciesMatching(t *testing.T) {
	db := openTestDB(t)
	db.InsertAgency(&Agency{Name: "Department of Defense", IsActive: true})
	db.InsertAgency(&Agency{Name: "Department of Energy", IsActive: true})

	matches, err := db.FindAgenciesMatching("defense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Name != "Department of Defense" {
		t.Errorf("unexpected match %q", matches[0].Name)
	}

	matches, err = db.FindAgenciesMatching("Department")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches for substring, got %d", len(matches))
	}
}

func TestFindAgenciesExactMatchFirst(t *testing.T) {
	db := openTestDB(t)
	db.InsertAgency(&Agency{Name: "Department of Energy Field Office", IsActive: true})
	db.InsertAgency(&Agency{Name: "Department of Energy", IsActive: true})

	matches, err := db.FindAgenciesMatching("Department of Energy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	// Exact name wins over the earlier-inserted substring match.
	if matches[0].Name != "Department of Energy" {
		t.Errorf("expected exact match first, got %q", matches[0].Name)
	}
}

func TestFindAgenciesEscapesWildcards(t *testing.T) {
	db := openTestDB(t)
	db.InsertAgency(&Agency{Name: "Department of Defense", IsActive: true})

	matches, err := db.FindAgenciesMatching("%")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected literal %% to match nothing, got %d", len(matches))
	}
}

func TestScoreLifecycle(t *testing.T) {
	db := openTestDB(t)
	oppID := insertTestOpportunity(t, db, "N-S1", "Scored Opp")

	has, err := db.HasScore(oppID, "AI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Error("expected no score before insert")
	}

	n, err := db.InsertScores([]*Score{{
		OpportunityID: oppID,
		ScoreType:     "AI",
		ScoreValue:    85,
		Confidence:    0.90,
		Metadata:      map[string]string{"rationale": "Strong NAICS fit"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 insert, got %d", n)
	}

	has, err = db.HasScore(oppID, "AI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !has {
		t.Error("expected score after insert")
	}

	scores, err := db.FindScoresAtOrAbove(80, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected 1 high score, got %d", len(scores))
	}
	if scores[0].Metadata["rationale"] != "Strong NAICS fit" {
		t.Errorf("unexpected metadata: %v", scores[0].Metadata)
	}
}

func TestFindScoresAtOrAboveExcludesLowAndOld(t *testing.T) {
	db := openTestDB(t)
	oppID := insertTestOpportunity(t, db, "N-S2", "Opp")

	db.InsertScores([]*Score{
		{OpportunityID: oppID, ScoreType: "AI", ScoreValue: 79, Confidence: 0.70},
		{OpportunityID: oppID, ScoreType: "MANUAL", ScoreValue: 95, Confidence: 0.90},
	})

	scores, err := db.FindScoresAtOrAbove(80, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected 1 score at or above 80, got %d", len(scores))
	}

	// A window starting in the future excludes everything.
	scores, err = db.FindScoresAtOrAbove(0, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("expected 0 scores in future window, got %d", len(scores))
	}
}

func TestCountScoresInRange(t *testing.T) {
	db := openTestDB(t)
	oppID := insertTestOpportunity(t, db, "N-S3", "Opp")

	db.InsertScores([]*Score{
		{OpportunityID: oppID, ScoreType: "AI", ScoreValue: 85, Confidence: 0.90},
		{OpportunityID: oppID, ScoreType: "AI", ScoreValue: 65, Confidence: 0.70},
		{OpportunityID: oppID, ScoreType: "AI", ScoreValue: 30, Confidence: 0.50},
	})

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	high, err := db.CountScoresInRange(80, 100, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	medium, _ := db.CountScoresInRange(50, 79, start, end)
	low, _ := db.CountScoresInRange(0, 49, start, end)

	if high != 1 || medium != 1 || low != 1 {
		t.Errorf("expected 1/1/1 histogram, got %d/%d/%d", high, medium, low)
	}
}

func TestDispatchMarker(t *testing.T) {
	db := openTestDB(t)
	oppID := insertTestOpportunity(t, db, "N-D1", "Opp")
	db.InsertScores([]*Score{{OpportunityID: oppID, ScoreType: "AI", ScoreValue: 90, Confidence: 0.90}})

	scores, _ := db.FindScoresAtOrAbove(80, time.Now().Add(-time.Hour))
	scoreID := scores[0].ID

	dispatched, err := db.WasDispatched(scoreID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispatched {
		t.Error("expected not dispatched before marking")
	}

	if err := db.MarkDispatched(scoreID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Marking twice must not fail.
	if err := db.MarkDispatched(scoreID); err != nil {
		t.Fatalf("unexpected error on repeat mark: %v", err)
	}

	dispatched, err = db.WasDispatched(scoreID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dispatched {
		t.Error("expected dispatched after marking")
	}

	count, err := db.CountDispatchesBetween(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 dispatch, got %d", count)
	}
}

func TestSyncLogs(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertSyncLog(&SyncLog{
		RunID:            "run-1",
		SyncType:         "WEEKLY_DIGEST",
		Status:           "SUCCESS",
		RecordsProcessed: 12,
		StartedAt:        ptr("2026-08-24 09:00:00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero sync log id")
	}

	db.InsertSyncLog(&SyncLog{
		RunID:      "run-2",
		SyncType:   "HIGH_SCORE_ALERT",
		Status:     "FAILED",
		ErrorCount: 1,
		ErrorLog:   ptr("webhook unreachable"),
	})

	entries, err := db.RecentSyncLogs(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" {
		t.Errorf("expected newest first, got %q", entries[0].RunID)
	}
	if entries[0].ErrorLog == nil || *entries[0].ErrorLog != "webhook unreachable" {
		t.Error("expected error log preserved")
	}
}

func TestCountOpportunitiesCreatedBetween(t *testing.T) {
	db := openTestDB(t)
	insertTestOpportunity(t, db, "N-C1", "Opp")

	count, err := db.CountOpportunitiesCreatedBetween(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 opportunity in window, got %d", count)
	}

	count, err = db.CountOpportunitiesCreatedBetween(time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 opportunities in past window, got %d", count)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	oppID := insertTestOpportunity(t, db, "N-ST1", "Opp")
	db.InsertAgency(&Agency{Name: "General Services Administration", IsActive: true})
	db.InsertScores([]*Score{{OpportunityID: oppID, ScoreType: "AI", ScoreValue: 88, Confidence: 0.90}})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Opportunities != 1 {
		t.Errorf("expected 1 opportunity, got %d", stats.Opportunities)
	}
	if stats.Agencies != 1 {
		t.Errorf("expected 1 agency, got %d", stats.Agencies)
	}
	if stats.HighScores != 1 {
		t.Errorf("expected 1 high score, got %d", stats.HighScores)
	}
}

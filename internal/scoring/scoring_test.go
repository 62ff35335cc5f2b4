package scoring

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/database"
	"github.com/fedscout/fedscout/internal/llm"
)

type fakeScorer struct {
	calls int
	fn    func(call int, title string) (*llm.ScoreResult, error)
}

func (f *fakeScorer) ScoreOpportunity(_ context.Context, title, _, _ string) (*llm.ScoreResult, error) {
	f.calls++
	return f.fn(f.calls, title)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertOpportunity(t *testing.T, db *database.DB, noticeID, title string) int64 {
	t.Helper()
	desc := "Some description"
	n, err := db.InsertOpportunities([]*database.Opportunity{{
		NoticeID:    noticeID,
		Title:       title,
		NoticeType:  "Solicitation",
		Description: &desc,
		IsActive:    true,
	}})
	if err != nil || n != 1 {
		t.Fatalf("insert failed: n=%d err=%v", n, err)
	}
	opps, _ := db.ListOpportunityPage(1000, 0)
	for _, o := range opps {
		if o.NoticeID == noticeID {
			return o.ID
		}
	}
	t.Fatal("opportunity not found after insert")
	return 0
}

func aiScores(t *testing.T, db *database.DB) []database.Score {
	t.Helper()
	scores, err := db.FindScoresAtOrAbove(0, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("listing scores: %v", err)
	}
	return scores
}

func TestRunScoresUnscoredOpportunities(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-1", "Cloud Services")
	insertOpportunity(t, db, "N-2", "Security Audit")

	scorer := &fakeScorer{fn: func(_ int, title string) (*llm.ScoreResult, error) {
		return &llm.ScoreResult{Score: 85, Rationale: "fit: " + title}, nil
	}}

	p := New(db, scorer, zap.NewNop(), 0, "caps")
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scored != 2 {
		t.Errorf("expected 2 scored, got %d", result.Scored)
	}

	scores := aiScores(t, db)
	if len(scores) != 2 {
		t.Fatalf("expected 2 stored scores, got %d", len(scores))
	}
	for _, s := range scores {
		if s.ScoreType != "AI" {
			t.Errorf("expected score type AI, got %q", s.ScoreType)
		}
		if s.Metadata["rationale"] == "" {
			t.Error("expected rationale in metadata")
		}
	}
}

func TestRunNeverScoresTwice(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-1", "Cloud Services")

	scorer := &fakeScorer{fn: func(_ int, _ string) (*llm.ScoreResult, error) {
		return &llm.ScoreResult{Score: 75, Rationale: "ok"}, nil
	}}
	p := New(db, scorer, zap.NewNop(), 0, "caps")

	for run := 0; run < 3; run++ {
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	if scorer.calls != 1 {
		t.Errorf("expected 1 remote call across runs, got %d", scorer.calls)
	}
	if scores := aiScores(t, db); len(scores) != 1 {
		t.Errorf("expected 1 score after repeated runs, got %d", len(scores))
	}
}

func TestRunSkipsMissingTitleWithoutRemoteCall(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-NOTITLE", "")

	scorer := &fakeScorer{fn: func(_ int, _ string) (*llm.ScoreResult, error) {
		return &llm.ScoreResult{Score: 50, Rationale: "x"}, nil
	}}
	p := New(db, scorer, zap.NewNop(), 0, "caps")

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scorer.calls != 0 {
		t.Errorf("expected no remote calls for titleless opportunity, got %d", scorer.calls)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Skipped)
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-RETRY", "Flaky Scoring")

	scorer := &fakeScorer{fn: func(call int, _ string) (*llm.ScoreResult, error) {
		if call < 3 {
			return nil, fmt.Errorf("%w: returned 503", llm.ErrAPIFailure)
		}
		return &llm.ScoreResult{Score: 91, Rationale: "third time lucky"}, nil
	}}
	p := New(db, scorer, zap.NewNop(), 0, "caps")

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scored != 1 {
		t.Errorf("expected 1 scored, got %d", result.Scored)
	}
	if scorer.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", scorer.calls)
	}

	scores := aiScores(t, db)
	if len(scores) != 1 {
		t.Fatalf("expected exactly 1 score, got %d", len(scores))
	}
	if scores[0].ScoreValue != 91 {
		t.Errorf("expected the third call's score, got %d", scores[0].ScoreValue)
	}
}

func TestRunSkipsAfterExhaustedRetries(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-FAIL", "Always Failing")
	insertOpportunity(t, db, "N-OK", "Healthy")

	scorer := &fakeScorer{fn: func(_ int, title string) (*llm.ScoreResult, error) {
		if title == "Always Failing" {
			return nil, fmt.Errorf("%w: returned 500", llm.ErrAPIFailure)
		}
		return &llm.ScoreResult{Score: 65, Rationale: "fine"}, nil
	}}
	p := New(db, scorer, zap.NewNop(), 0, "caps")

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run must not abort on item failure: %v", err)
	}
	if result.Scored != 1 {
		t.Errorf("expected 1 scored, got %d", result.Scored)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 errored item, got %d", result.Errors)
	}

	if scores := aiScores(t, db); len(scores) != 1 {
		t.Errorf("expected only the healthy opportunity scored, got %d scores", len(scores))
	}
}

func TestConfidenceMapping(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{85, 0.90},
		{80, 0.90},
		{79, 0.70},
		{65, 0.70},
		{50, 0.70},
		{49, 0.50},
		{30, 0.50},
		{0, 0.50},
		{100, 0.90},
	}
	for _, tt := range tests {
		if got := confidenceFor(tt.score); got != tt.want {
			t.Errorf("confidenceFor(%d) = %.2f, want %.2f", tt.score, got, tt.want)
		}
	}
}

func TestConfidenceStoredWithScore(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-CONF", "Confidence Check")

	scorer := &fakeScorer{fn: func(_ int, _ string) (*llm.ScoreResult, error) {
		return &llm.ScoreResult{Score: 65, Rationale: "medium tier"}, nil
	}}
	p := New(db, scorer, zap.NewNop(), 0, "caps")
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scores := aiScores(t, db)
	if len(scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(scores))
	}
	if scores[0].Confidence != 0.70 {
		t.Errorf("expected confidence 0.70, got %.2f", scores[0].Confidence)
	}
	if scores[0].Metadata["rationale"] != "medium tier" {
		t.Errorf("expected rationale preserved verbatim, got %q", scores[0].Metadata["rationale"])
	}
}

func TestRunUnexpectedErrorSkipsItem(t *testing.T) {
	db := openTestDB(t)
	insertOpportunity(t, db, "N-ODD", "Odd Failure")

	scorer := &fakeScorer{fn: func(_ int, _ string) (*llm.ScoreResult, error) {
		return nil, errors.New("something unrelated broke")
	}}
	p := New(db, scorer, zap.NewNop(), 0, "caps")

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run must not abort: %v", err)
	}
	if scorer.calls != 1 {
		t.Errorf("expected no retry for non-API errors, got %d calls", scorer.calls)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 errored item, got %d", result.Errors)
	}
}

// Package scoring walks unscored opportunities in pages and asks the AI
// scoring client to evaluate each one. Fault policy: skip without limit,
// retry with limit; individual failures never abort the run.
package scoring

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/database"
	"github.com/fedscout/fedscout/internal/llm"
)

const (
	// ScoreType tags scores produced by this pipeline. At most one score
	// of this type is ever created per opportunity.
	ScoreType = "AI"

	defaultPageSize = 50
	maxItemAttempts = 3
)

// Scorer is the scoring client contract consumed by the pipeline.
type Scorer interface {
	ScoreOpportunity(ctx context.Context, title, description, capabilities string) (*llm.ScoreResult, error)
}

// Result holds the results of a scoring run.
type Result struct {
	Scored  int
	Skipped int
	Errors  int
}

// Pipeline scores opportunities that do not yet carry an AI score.
type Pipeline struct {
	db           *database.DB
	scorer       Scorer
	logger       *zap.Logger
	pageSize     int
	capabilities string
}

// New creates a scoring pipeline. pageSize <= 0 falls back to 50.
func New(db *database.DB, scorer Scorer, logger *zap.Logger, pageSize int, capabilities string) *Pipeline {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Pipeline{
		db:           db,
		scorer:       scorer,
		logger:       logger,
		pageSize:     pageSize,
		capabilities: capabilities,
	}
}

// Run scores all unscored opportunities, one page at a time. Remote calls
// are sequential within a page to respect the API's rate limits, and each
// page's successfully-scored subset is committed in input order before
// the next page is read.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for offset := 0; ; offset += p.pageSize {
		page, err := p.db.ListOpportunityPage(p.pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		var scores []*database.Score
		for _, opp := range page {
			score := p.scoreOne(ctx, &opp, result)
			if score != nil {
				scores = append(scores, score)
			}
		}

		if _, err := p.db.InsertScores(scores); err != nil {
			return nil, err
		}
		result.Scored += len(scores)

		if len(page) < p.pageSize {
			break
		}
	}

	p.logger.Info("scoring run complete",
		zap.Int("scored", result.Scored),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// scoreOne evaluates a single opportunity. Returns nil for every skip
// case: already scored, missing title, retry exhaustion, unexpected error.
func (p *Pipeline) scoreOne(ctx context.Context, opp *database.Opportunity, result *Result) *database.Score {
	hasScore, err := p.db.HasScore(opp.ID, ScoreType)
	if err != nil {
		p.logger.Error("checking existing score", zap.String("notice_id", opp.NoticeID), zap.Error(err))
		result.Errors++
		return nil
	}
	if hasScore {
		p.logger.Debug("opportunity already scored", zap.String("notice_id", opp.NoticeID))
		result.Skipped++
		return nil
	}

	if opp.Title == "" {
		p.logger.Warn("opportunity missing title, skipping", zap.String("notice_id", opp.NoticeID))
		result.Skipped++
		return nil
	}

	description := "No description available"
	if opp.Description != nil && *opp.Description != "" {
		description = *opp.Description
	}

	scored, err := p.callWithRetry(ctx, opp.Title, description)
	if err != nil {
		p.logger.Error("scoring failed, skipping opportunity",
			zap.String("notice_id", opp.NoticeID),
			zap.Error(err),
		)
		result.Errors++
		return nil
	}

	p.logger.Info("scored opportunity",
		zap.String("notice_id", opp.NoticeID),
		zap.Int("score", scored.Score),
	)

	return &database.Score{
		OpportunityID: opp.ID,
		ScoreType:     ScoreType,
		ScoreValue:    scored.Score,
		Confidence:    confidenceFor(scored.Score),
		Metadata:      map[string]string{"rationale": scored.Rationale},
	}
}

// callWithRetry retries the scoring call on the API failure class only;
// any other error propagates immediately.
func (p *Pipeline) callWithRetry(ctx context.Context, title, description string) (*llm.ScoreResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxItemAttempts; attempt++ {
		scored, err := p.scorer.ScoreOpportunity(ctx, title, description, p.capabilities)
		if err == nil {
			return scored, nil
		}
		if !errors.Is(err, llm.ErrAPIFailure) {
			return nil, err
		}
		lastErr = err
		p.logger.Warn("scoring attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// confidenceFor maps a raw score to its confidence tier. Pure function:
// >= 80 is high (0.90), 50-79 medium (0.70), below 50 low (0.50).
func confidenceFor(score int) float64 {
	switch {
	case score >= 80:
		return 0.90
	case score >= 50:
		return 0.70
	default:
		return 0.50
	}
}

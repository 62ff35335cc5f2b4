package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/config"
	"github.com/fedscout/fedscout/internal/database"
)

// DigestJob assembles the weekly activity summary and delivers it over
// both channels. A quiet week still produces a digest so recipients can
// tell "nothing happened" from "nothing was sent".
type DigestJob struct {
	db     *database.DB
	chat   ChatNotifier
	email  EmailNotifier
	cfg    config.Digest
	logger *zap.Logger
	now    func() time.Time
}

// NewDigestJob creates the weekly digest job.
func NewDigestJob(db *database.DB, chat ChatNotifier, email EmailNotifier, cfg config.Digest, logger *zap.Logger) *DigestJob {
	return &DigestJob{
		db:     db,
		chat:   chat,
		email:  email,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// weekStats is the digest's aggregate view of one reporting window.
type weekStats struct {
	Imported   int
	Scored     int
	HighCount  int
	MedCount   int
	LowCount   int
	Dispatched int
}

// Run executes one digest delivery. Like the alert job it records its
// outcome in the sync log and never propagates errors to the scheduler.
func (j *DigestJob) Run() {
	if !j.cfg.Enabled {
		j.logger.Debug("digest disabled, skipping run")
		return
	}

	start := j.now()
	delivered, err := j.deliver(start)

	entry := &database.SyncLog{
		RunID:            uuid.NewString(),
		SyncType:         SyncTypeDigest,
		Status:           StatusSuccess,
		RecordsProcessed: delivered,
		StartedAt:        ptr(database.FormatTime(start)),
	}
	if err != nil {
		j.logger.Error("digest run failed", zap.Error(err))
		entry.Status = StatusFailed
		entry.ErrorCount = 1
		entry.ErrorLog = ptr(err.Error())
	}

	if _, logErr := j.db.InsertSyncLog(entry); logErr != nil {
		j.logger.Error("recording digest run", zap.Error(logErr))
	}

	j.logger.Info("digest run complete", zap.String("status", entry.Status))
}

// deliver gathers the stats for the trailing week and sends the digest.
// Returns the number of channels that accepted it; delivery counts as
// failed only if every channel refused.
func (j *DigestJob) deliver(start time.Time) (int, error) {
	weekAgo := start.AddDate(0, 0, -7)
	stats, err := j.gather(weekAgo, start)
	if err != nil {
		return 0, err
	}

	title := fmt.Sprintf("Weekly Digest: %s - %s",
		weekAgo.Format("Jan 2"), start.Format("Jan 2, 2006"))
	body := buildDigest(stats)

	delivered := 0
	if chatErr := j.chat.SendMessage(context.Background(), title, body); chatErr != nil {
		j.logger.Error("sending digest to chat", zap.Error(chatErr))
	} else {
		delivered++
	}
	if emailErr := j.email.SendMarkdown(j.cfg.RecipientEmail, title, body); emailErr != nil {
		j.logger.Error("sending digest email", zap.Error(emailErr))
	} else {
		delivered++
	}

	if delivered == 0 {
		return 0, fmt.Errorf("digest delivery failed on all channels")
	}
	return delivered, nil
}

func (j *DigestJob) gather(start, end time.Time) (*weekStats, error) {
	stats := &weekStats{}
	var err error

	if stats.Imported, err = j.db.CountOpportunitiesCreatedBetween(start, end); err != nil {
		return nil, fmt.Errorf("counting imported opportunities: %w", err)
	}
	if stats.Scored, err = j.db.CountScoresCreatedBetween(start, end); err != nil {
		return nil, fmt.Errorf("counting scores: %w", err)
	}
	if stats.HighCount, err = j.db.CountScoresInRange(80, 100, start, end); err != nil {
		return nil, fmt.Errorf("counting high scores: %w", err)
	}
	if stats.MedCount, err = j.db.CountScoresInRange(50, 79, start, end); err != nil {
		return nil, fmt.Errorf("counting medium scores: %w", err)
	}
	if stats.LowCount, err = j.db.CountScoresInRange(0, 49, start, end); err != nil {
		return nil, fmt.Errorf("counting low scores: %w", err)
	}
	if stats.Dispatched, err = j.db.CountDispatchesBetween(start, end); err != nil {
		return nil, fmt.Errorf("counting dispatched alerts: %w", err)
	}

	return stats, nil
}

// buildDigest renders the weekly summary as markdown.
func buildDigest(stats *weekStats) string {
	var b strings.Builder

	b.WriteString("## This Week's Activity\n\n")
	fmt.Fprintf(&b, "- **New opportunities imported:** %d\n", stats.Imported)
	fmt.Fprintf(&b, "- **Opportunities scored:** %d\n", stats.Scored)
	fmt.Fprintf(&b, "- **Alerts dispatched:** %d\n", stats.Dispatched)

	b.WriteString("\n## Score Distribution\n\n")
	fmt.Fprintf(&b, "- High (80-100): %d\n", stats.HighCount)
	fmt.Fprintf(&b, "- Medium (50-79): %d\n", stats.MedCount)
	fmt.Fprintf(&b, "- Low (0-49): %d\n", stats.LowCount)

	b.WriteString("\n## Insights\n\n")
	for _, line := range insights(stats) {
		b.WriteString("- " + line + "\n")
	}

	return b.String()
}

func insights(stats *weekStats) []string {
	var lines []string
	if stats.Imported == 0 {
		lines = append(lines, "No new opportunities were imported this week.")
	}
	if stats.HighCount > 0 {
		lines = append(lines, fmt.Sprintf("%d high-scoring opportunities need review.", stats.HighCount))
	}
	if stats.Scored > 0 && stats.HighCount == 0 {
		lines = append(lines, "No opportunities crossed the high-score threshold this week.")
	}
	if backlog := stats.Imported - stats.Scored; backlog > 0 {
		lines = append(lines, fmt.Sprintf("%d imported opportunities are awaiting scoring.", backlog))
	}
	if len(lines) == 0 {
		lines = append(lines, "A quiet week with no notable activity.")
	}
	return lines
}

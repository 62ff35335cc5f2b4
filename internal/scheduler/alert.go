package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/config"
	"github.com/fedscout/fedscout/internal/database"
)

const (
	SyncTypeAlert  = "HIGH_SCORE_ALERT"
	SyncTypeDigest = "WEEKLY_DIGEST"

	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// AlertJob fans out notifications for recent high-scoring opportunities.
// Each qualifying score is alerted at most once, tracked in the dispatch
// table, so re-runs inside the lookback window do not resend.
type AlertJob struct {
	db     *database.DB
	chat   ChatNotifier
	email  EmailNotifier
	cfg    config.Alerts
	logger *zap.Logger
	now    func() time.Time
}

// NewAlertJob creates the high-score alert job.
func NewAlertJob(db *database.DB, chat ChatNotifier, email EmailNotifier, cfg config.Alerts, logger *zap.Logger) *AlertJob {
	return &AlertJob{
		db:     db,
		chat:   chat,
		email:  email,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one alert sweep. Errors never propagate: the run outcome
// is recorded in the sync log and surfaced through logging only.
func (j *AlertJob) Run() {
	if !j.cfg.Enabled {
		j.logger.Debug("alerts disabled, skipping run")
		return
	}

	start := j.now()
	sent, errCount, err := j.sweep(start)

	entry := &database.SyncLog{
		RunID:            uuid.NewString(),
		SyncType:         SyncTypeAlert,
		Status:           StatusSuccess,
		RecordsProcessed: sent,
		ErrorCount:       errCount,
		StartedAt:        ptr(database.FormatTime(start)),
	}
	if err != nil {
		j.logger.Error("alert run failed", zap.Error(err))
		entry.Status = StatusFailed
		entry.ErrorLog = ptr(err.Error())
	}

	if _, logErr := j.db.InsertSyncLog(entry); logErr != nil {
		j.logger.Error("recording alert run", zap.Error(logErr))
	}

	j.logger.Info("alert run complete",
		zap.String("status", entry.Status),
		zap.Int("alerts_sent", sent),
		zap.Int("errors", errCount),
	)
}

// sweep finds undispatched high scores inside the lookback window and
// sends notifications for each. Channel failures are logged and counted
// but do not stop the sweep.
func (j *AlertJob) sweep(start time.Time) (sent, errCount int, err error) {
	since := start.Add(-time.Duration(j.cfg.LookbackHours) * time.Hour)
	scores, err := j.db.FindScoresAtOrAbove(j.cfg.ScoreThreshold, since)
	if err != nil {
		return 0, 0, fmt.Errorf("finding high scores: %w", err)
	}

	ctx := context.Background()
	for _, score := range scores {
		dispatched, err := j.db.WasDispatched(score.ID)
		if err != nil {
			return sent, errCount, fmt.Errorf("checking dispatch state: %w", err)
		}
		if dispatched {
			continue
		}

		opp, err := j.db.GetOpportunityByID(score.OpportunityID)
		if err != nil || opp == nil {
			j.logger.Error("loading opportunity for alert",
				zap.Int64("opportunity_id", score.OpportunityID), zap.Error(err))
			errCount++
			continue
		}

		if j.alertOne(ctx, opp, &score) {
			if err := j.db.MarkDispatched(score.ID); err != nil {
				j.logger.Error("marking alert dispatched", zap.Int64("score_id", score.ID), zap.Error(err))
			}
			sent++
		} else {
			errCount++
		}
	}

	return sent, errCount, nil
}

// alertOne sends the chat and email notifications for one score. The two
// channels are independent: one failing does not suppress the other, and
// the alert counts as delivered if either succeeds.
func (j *AlertJob) alertOne(ctx context.Context, opp *database.Opportunity, score *database.Score) bool {
	solicitation := opp.NoticeID
	if opp.SolicitationNumber != nil && *opp.SolicitationNumber != "" {
		solicitation = *opp.SolicitationNumber
	}
	deadline := "N/A"
	if opp.ResponseDeadline != nil && *opp.ResponseDeadline != "" {
		deadline = *opp.ResponseDeadline
	}
	link := ""
	if opp.UILink != nil {
		link = *opp.UILink
	}

	chatErr := j.chat.SendHighScoreAlert(ctx, opp.Title, score.ScoreValue, solicitation, deadline, link)
	if chatErr != nil {
		j.logger.Error("sending chat alert", zap.String("notice_id", opp.NoticeID), zap.Error(chatErr))
	}

	subject := fmt.Sprintf("High-Score Opportunity: %s (Score: %d)", opp.Title, score.ScoreValue)
	emailErr := j.email.SendMarkdown(j.cfg.RecipientEmail, subject, alertBody(opp, score, solicitation, deadline, link))
	if emailErr != nil {
		j.logger.Error("sending alert email", zap.String("notice_id", opp.NoticeID), zap.Error(emailErr))
	}

	return chatErr == nil || emailErr == nil
}

func alertBody(opp *database.Opportunity, score *database.Score, solicitation, deadline, link string) string {
	body := fmt.Sprintf(
		"# %s\n\n**Score:** %d/100\n\n**Solicitation:** %s\n\n**Deadline:** %s\n",
		opp.Title, score.ScoreValue, solicitation, deadline,
	)
	if rationale := score.Metadata["rationale"]; rationale != "" {
		body += fmt.Sprintf("\n**Analysis:**\n\n%s\n", rationale)
	}
	if link != "" {
		body += fmt.Sprintf("\n[View Details](%s)\n", link)
	}
	return body
}

func ptr(s string) *string {
	return &s
}

package database

// Opportunity is a government contract notice imported from SAM.gov data.
type Opportunity struct {
	ID                 int64
	NoticeID           string
	Title              string
	SolicitationNumber *string
	Description        *string
	NoticeType         string
	PostedDate         *string // YYYY-MM-DD
	ResponseDeadline   *string // RFC 3339 instant
	NAICSCode          *string
	SetAside           *string
	ClassificationCode *string
	AgencyID           *int64
	OfficeName         *string
	PoPCity            *string
	PoPState           *string
	PoPCountry         *string
	PoPZip             *string
	ArchiveType        *string
	UILink             *string
	AdditionalInfoLink *string
	IsActive           bool
	CreatedAt          *string
}

// Agency is a normalized government organization.
type Agency struct {
	ID           int64
	Name         string
	Abbreviation *string
	Department   *string
	Tier         *string
	IsActive     bool
	CreatedAt    *string
}

// Score is one scoring event for one opportunity.
type Score struct {
	ID            int64
	OpportunityID int64
	ScoreType     string
	ScoreValue    int
	Confidence    float64
	Metadata      map[string]string
	CreatedAt     *string
}

// SyncLog is an audit record of a completed pipeline or scheduler run.
type SyncLog struct {
	ID               int64
	RunID            string
	SyncType         string
	Status           string // SUCCESS or FAILED
	RecordsProcessed int
	ErrorCount       int
	ErrorLog         *string
	StartedAt        *string
	CompletedAt      *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Opportunities    int
	Agencies         int
	Scores           int
	HighScores       int
	SyncLogs         int
	AlertsDispatched int
}

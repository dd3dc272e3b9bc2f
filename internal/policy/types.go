package policy

import (
	"time"

	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/fingerprint"
	"horse.fit/safeagree/internal/summarizer"
)

// CatalogEntry is the single row describing one distinct document.
type CatalogEntry struct {
	ID              int64                   `json:"id" yaml:"id"`
	UUID            string                  `json:"uuid" yaml:"uuid"`
	Fingerprint     fingerprint.Fingerprint `json:"fingerprint" yaml:"fingerprint"`
	CompanyName     string                  `json:"company_name" yaml:"company_name"`
	SourceLink      *string                 `json:"source_link,omitempty" yaml:"source_link,omitempty"`
	ArtifactKey     string                  `json:"artifact_key" yaml:"artifact_key"`
	Language        string                  `json:"language" yaml:"language"`
	CreatedAt       time.Time               `json:"created_at" yaml:"created_at"`
	LastProcessedAt time.Time               `json:"last_processed_at" yaml:"last_processed_at"`
}

// Link returns the source link or "" for uploads.
func (e CatalogEntry) Link() string {
	if e.SourceLink == nil {
		return ""
	}
	return *e.SourceLink
}

// NewCatalogEntry is the insert payload for a fresh computation.
type NewCatalogEntry struct {
	UUID        string
	Fingerprint fingerprint.Fingerprint
	CompanyName string
	SourceLink  *string
	ArtifactKey string
	Language    string
	ProcessedAt time.Time
}

// SummaryArtifact is the stored document for one fingerprint.
type SummaryArtifact struct {
	Fingerprint string               `json:"fingerprint"`
	Sections    []summarizer.Section `json:"sections"`
	KeyPoints   []string             `json:"key_points"`
	Sentiment   string               `json:"sentiment"`
	Language    string               `json:"language"`
	Summarizer  string               `json:"summarizer"`
	Model       string               `json:"model,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// ProcessRequest is one document submission on behalf of a user.
type ProcessRequest struct {
	UserID      int64
	Input       content.Input
	CompanyName string
	FileName    string
}

// Result is the outcome of ProcessDocument. Cached is true when the artifact
// was served from an existing catalog entry.
type Result struct {
	Entry    CatalogEntry
	Artifact SummaryArtifact
	Cached   bool
}

// EntryView is the read model returned by GetEntry.
type EntryView struct {
	Entry    CatalogEntry
	Artifact SummaryArtifact
}

// LibraryItem is one row of a user's library listing.
type LibraryItem struct {
	EntryID         int64     `json:"entry_id" yaml:"entry_id"`
	CompanyName     string    `json:"company_name" yaml:"company_name"`
	SourceLink      string    `json:"source_link,omitempty" yaml:"source_link,omitempty"`
	LastProcessedAt time.Time `json:"last_processed_at" yaml:"last_processed_at"`
}

// Status labels per-item outcomes in refresh and import reports.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusUnchanged Status = "unchanged"
	StatusUpdated   Status = "updated"
)

// RefreshItem reports one library entry.
type RefreshItem struct {
	EntryID     int64  `json:"entry_id"`
	CompanyName string `json:"company_name"`
	Status      Status `json:"status"`
	NewEntryID  int64  `json:"new_entry_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

type RefreshReport struct {
	Items   []RefreshItem `json:"items"`
	Library []LibraryItem `json:"library"`
}

// ImportResult reports one input line.
type ImportResult struct {
	Line    int    `json:"line"`
	Link    string `json:"link"`
	Status  Status `json:"status"`
	EntryID int64  `json:"entry_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type ImportReport struct {
	Results []ImportResult `json:"results"`
	Library []LibraryItem  `json:"library"`
}

// Succeeded counts successful lines.
func (r *ImportReport) Succeeded() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, result := range r.Results {
		if result.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// SweepReport lists the artifact keys removed (or that would be removed).
type SweepReport struct {
	Scanned int      `json:"scanned"`
	Deleted []string `json:"deleted"`
	DryRun  bool     `json:"dry_run"`
}

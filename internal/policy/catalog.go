package policy

import (
	"context"
	"time"

	"horse.fit/safeagree/internal/artifact"
	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/fingerprint"
)

// Catalog indexes summarized documents and per-user library associations.
// Lookups that find nothing return ErrNotFound.
type Catalog interface {
	FindByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (*CatalogEntry, error)
	// InsertEntry returns ErrUniquenessViolation when the fingerprint exists.
	InsertEntry(ctx context.Context, entry NewCatalogEntry) (*CatalogEntry, error)
	// TouchEntry sets LastProcessedAt, and SourceLink when link is non-nil.
	TouchEntry(ctx context.Context, entryID int64, at time.Time, link *string) error
	GetEntry(ctx context.Context, entryID int64) (*CatalogEntry, error)
	ListEntries(ctx context.Context, limit int) ([]CatalogEntry, error)
	ListByUser(ctx context.Context, userID int64) ([]CatalogEntry, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	// UpsertAssociation is idempotent. A missing user or entry yields ErrNotFound.
	UpsertAssociation(ctx context.Context, userID, entryID int64) error
	DeleteAssociation(ctx context.Context, userID, entryID int64) (bool, error)
	ListArtifactKeys(ctx context.Context) ([]string, error)
	ListUsersWithLibraries(ctx context.Context) ([]int64, error)
}

// ArtifactStore holds serialized summaries. Put is write-once and returns
// artifact.ErrExists for a taken key; Get and Touch return
// artifact.ErrNotFound. Touch resets the age List reports for a key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Touch(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]artifact.ObjectInfo, error)
}

// Normalizer produces canonical text from a submission.
type Normalizer interface {
	Normalize(ctx context.Context, in content.Input) (string, error)
}

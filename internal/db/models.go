package db

import (
	"time"

	"gorm.io/datatypes"
)

// User maps safeagree.users.
type User struct {
	UserID       int64     `gorm:"column:user_id;primaryKey;autoIncrement"`
	UserUUID     string    `gorm:"column:user_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Email        string    `gorm:"column:email;type:text;not null;uniqueIndex:users_email_key"`
	PasswordHash string    `gorm:"column:password_hash;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (User) TableName() string { return "safeagree.users" }

// CatalogEntry maps safeagree.catalog_entries. One row per fingerprint.
type CatalogEntry struct {
	CatalogEntryID   int64     `gorm:"column:catalog_entry_id;primaryKey;autoIncrement"`
	CatalogEntryUUID string    `gorm:"column:catalog_entry_uuid;type:uuid;not null;unique"`
	Fingerprint      string    `gorm:"column:fingerprint;type:text;not null;uniqueIndex:catalog_entries_fingerprint_key"`
	CompanyName      string    `gorm:"column:company_name;type:text;not null"`
	SourceLink       *string   `gorm:"column:source_link;type:text"`
	ArtifactKey      string    `gorm:"column:artifact_key;type:text;not null;uniqueIndex:catalog_entries_artifact_key_key"`
	Language         string    `gorm:"column:language;type:text;not null;default:und"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastProcessedAt  time.Time `gorm:"column:last_processed_at;type:timestamptz;not null;default:now()"`
}

func (CatalogEntry) TableName() string { return "safeagree.catalog_entries" }

// LibraryEntry maps safeagree.library_entries.
type LibraryEntry struct {
	UserID         int64     `gorm:"column:user_id;type:bigint;primaryKey"`
	CatalogEntryID int64     `gorm:"column:catalog_entry_id;type:bigint;primaryKey;index:library_entries_catalog_entry_idx"`
	AddedAt        time.Time `gorm:"column:added_at;type:timestamptz;not null;default:now()"`
}

func (LibraryEntry) TableName() string { return "safeagree.library_entries" }

// ArtifactBlob maps safeagree.artifact_blobs, the postgres artifact backend.
type ArtifactBlob struct {
	ArtifactKey string         `gorm:"column:artifact_key;type:text;primaryKey"`
	Body        datatypes.JSON `gorm:"column:body;type:jsonb;not null"`
	SizeBytes   int64          `gorm:"column:size_bytes;type:bigint;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	TouchedAt   time.Time      `gorm:"column:touched_at;type:timestamptz;not null;default:now()"`
}

func (ArtifactBlob) TableName() string { return "safeagree.artifact_blobs" }

func autoMigrateModels() []any {
	return []any{
		&User{},
		&CatalogEntry{},
		&LibraryEntry{},
		&ArtifactBlob{},
	}
}

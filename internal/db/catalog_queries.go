package db

import (
	"context"
	"fmt"
	"time"

	"horse.fit/safeagree/internal/fingerprint"
	"horse.fit/safeagree/internal/policy"
)

const catalogEntryColumns = `
	c.catalog_entry_id,
	c.catalog_entry_uuid::text,
	c.fingerprint,
	c.company_name,
	c.source_link,
	c.artifact_key,
	c.language,
	c.created_at,
	c.last_processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogEntry(row rowScanner) (*policy.CatalogEntry, error) {
	var (
		entry  policy.CatalogEntry
		fpText string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.UUID,
		&fpText,
		&entry.CompanyName,
		&entry.SourceLink,
		&entry.ArtifactKey,
		&entry.Language,
		&entry.CreatedAt,
		&entry.LastProcessedAt,
	); err != nil {
		return nil, err
	}

	fp, err := fingerprint.Parse(fpText)
	if err != nil {
		return nil, fmt.Errorf("catalog entry %d: %w", entry.ID, err)
	}
	entry.Fingerprint = fp
	return &entry, nil
}

func (p *Pool) FindByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (*policy.CatalogEntry, error) {
	q := `SELECT` + catalogEntryColumns + `
FROM safeagree.catalog_entries c
WHERE c.fingerprint = $1
`
	entry, err := scanCatalogEntry(p.queryRow(ctx, q, fp.Hex()))
	if err != nil {
		if isNoRows(err) {
			return nil, policy.ErrNotFound
		}
		return nil, fmt.Errorf("find catalog entry by fingerprint: %w", err)
	}
	return entry, nil
}

func (p *Pool) InsertEntry(ctx context.Context, in policy.NewCatalogEntry) (*policy.CatalogEntry, error) {
	q := `
INSERT INTO safeagree.catalog_entries AS c (
	catalog_entry_uuid,
	fingerprint,
	company_name,
	source_link,
	artifact_key,
	language,
	created_at,
	last_processed_at
)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (fingerprint) DO NOTHING
RETURNING` + catalogEntryColumns

	entry, err := scanCatalogEntry(p.queryRow(ctx, q,
		in.UUID,
		in.Fingerprint.Hex(),
		in.CompanyName,
		in.SourceLink,
		in.ArtifactKey,
		in.Language,
		in.ProcessedAt.UTC(),
	))
	if err != nil {
		// DO NOTHING yields no row when the fingerprint is already taken.
		if isNoRows(err) || isUniqueViolation(err) {
			return nil, policy.ErrUniquenessViolation
		}
		return nil, fmt.Errorf("insert catalog entry: %w", err)
	}
	return entry, nil
}

func (p *Pool) TouchEntry(ctx context.Context, entryID int64, at time.Time, link *string) error {
	const q = `
UPDATE safeagree.catalog_entries
SET
	last_processed_at = $2,
	source_link = COALESCE($3, source_link)
WHERE catalog_entry_id = $1
`
	affected, err := p.exec(ctx, q, entryID, at.UTC(), link)
	if err != nil {
		return fmt.Errorf("touch catalog entry %d: %w", entryID, err)
	}
	if affected == 0 {
		return policy.ErrNotFound
	}
	return nil
}

func (p *Pool) GetEntry(ctx context.Context, entryID int64) (*policy.CatalogEntry, error) {
	q := `SELECT` + catalogEntryColumns + `
FROM safeagree.catalog_entries c
WHERE c.catalog_entry_id = $1
`
	entry, err := scanCatalogEntry(p.queryRow(ctx, q, entryID))
	if err != nil {
		if isNoRows(err) {
			return nil, policy.ErrNotFound
		}
		return nil, fmt.Errorf("get catalog entry %d: %w", entryID, err)
	}
	return entry, nil
}

func (p *Pool) ListEntries(ctx context.Context, limit int) ([]policy.CatalogEntry, error) {
	if limit <= 0 {
		limit = policy.DefaultHistoryLimit
	}
	q := `SELECT` + catalogEntryColumns + `
FROM safeagree.catalog_entries c
ORDER BY c.last_processed_at DESC, c.catalog_entry_id DESC
LIMIT $1
`
	return p.queryCatalogEntries(ctx, "list catalog entries", q, limit)
}

func (p *Pool) ListByUser(ctx context.Context, userID int64) ([]policy.CatalogEntry, error) {
	q := `SELECT` + catalogEntryColumns + `
FROM safeagree.catalog_entries c
JOIN safeagree.library_entries l
	ON l.catalog_entry_id = c.catalog_entry_id
WHERE l.user_id = $1
ORDER BY c.last_processed_at DESC, c.catalog_entry_id DESC
`
	return p.queryCatalogEntries(ctx, "list library entries", q, userID)
}

func (p *Pool) queryCatalogEntries(ctx context.Context, label, q string, args ...any) ([]policy.CatalogEntry, error) {
	rows, err := p.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	out := make([]policy.CatalogEntry, 0, 16)
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", label, err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", label, err)
	}
	return out, nil
}

func (p *Pool) UserExists(ctx context.Context, userID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM safeagree.users WHERE user_id = $1)`

	var exists bool
	if err := p.queryRow(ctx, q, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user %d: %w", userID, err)
	}
	return exists, nil
}

func (p *Pool) UpsertAssociation(ctx context.Context, userID, entryID int64) error {
	const q = `
INSERT INTO safeagree.library_entries (
	user_id,
	catalog_entry_id,
	added_at
)
VALUES ($1, $2, now())
ON CONFLICT (user_id, catalog_entry_id) DO NOTHING
`
	if _, err := p.exec(ctx, q, userID, entryID); err != nil {
		if isForeignKeyViolation(err) {
			return policy.ErrNotFound
		}
		return fmt.Errorf("upsert library entry (%d, %d): %w", userID, entryID, err)
	}
	return nil
}

func (p *Pool) DeleteAssociation(ctx context.Context, userID, entryID int64) (bool, error) {
	const q = `
DELETE FROM safeagree.library_entries
WHERE user_id = $1
  AND catalog_entry_id = $2
`
	affected, err := p.exec(ctx, q, userID, entryID)
	if err != nil {
		return false, fmt.Errorf("delete library entry (%d, %d): %w", userID, entryID, err)
	}
	return affected > 0, nil
}

func (p *Pool) ListArtifactKeys(ctx context.Context) ([]string, error) {
	const q = `SELECT artifact_key FROM safeagree.catalog_entries ORDER BY artifact_key`

	rows, err := p.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list artifact keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0, 64)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan artifact key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact keys: %w", err)
	}
	return keys, nil
}

func (p *Pool) ListUsersWithLibraries(ctx context.Context) ([]int64, error) {
	const q = `SELECT DISTINCT user_id FROM safeagree.library_entries ORDER BY user_id`

	rows, err := p.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list library owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan library owner: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library owners: %w", err)
	}
	return ids, nil
}

var _ policy.Catalog = (*Pool)(nil)

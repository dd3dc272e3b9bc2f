package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"horse.fit/safeagree/internal/artifact"
)

// BlobStore keeps summary artifacts in safeagree.artifact_blobs.
// Postgres normalizes jsonb, so Get returns equivalent JSON rather than
// the exact bytes given to Put.
type BlobStore struct {
	pool *Pool
}

func NewBlobStore(pool *Pool) *BlobStore {
	return &BlobStore{pool: pool}
}

func (s *BlobStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || !s.pool.ready() {
		return nil, errPoolNotInitialized
	}
	return s.pool.gdb.WithContext(ctx), nil
}

func (s *BlobStore) Put(ctx context.Context, key string, body []byte) error {
	if err := artifact.ValidateKey(key); err != nil {
		return err
	}
	if !json.Valid(body) {
		return fmt.Errorf("artifact %s: body is not valid JSON", key)
	}
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	row := ArtifactBlob{
		ArtifactKey: key,
		Body:        datatypes.JSON(body),
		SizeBytes:   int64(len(body)),
		CreatedAt:   now,
		TouchedAt:   now,
	}
	res := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "artifact_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("insert artifact %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return artifact.ErrExists
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := artifact.ValidateKey(key); err != nil {
		return nil, err
	}
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var row ArtifactBlob
	if err := gdb.Where("artifact_key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("load artifact %s: %w", key, err)
	}
	return []byte(row.Body), nil
}

// Touch restarts the sweep grace period of key.
func (s *BlobStore) Touch(ctx context.Context, key string) error {
	if err := artifact.ValidateKey(key); err != nil {
		return err
	}
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}
	res := gdb.Model(&ArtifactBlob{}).Where("artifact_key = ?", key).Update("touched_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("touch artifact %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return artifact.ErrNotFound
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := artifact.ValidateKey(key); err != nil {
		return err
	}
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := gdb.Where("artifact_key = ?", key).Delete(&ArtifactBlob{}).Error; err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) List(ctx context.Context) ([]artifact.ObjectInfo, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []ArtifactBlob
	if err := gdb.Select("artifact_key", "size_bytes", "touched_at").Order("artifact_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	out := make([]artifact.ObjectInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, artifact.ObjectInfo{
			Key:        row.ArtifactKey,
			Size:       row.SizeBytes,
			ModifiedAt: row.TouchedAt,
		})
	}
	return out, nil
}

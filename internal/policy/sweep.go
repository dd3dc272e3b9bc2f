package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/safeagree/internal/artifact"
)

// DefaultSweepGrace keeps young orphans, which may belong to an insert that
// has not landed yet.
const DefaultSweepGrace = 24 * time.Hour

// Sweeper deletes artifacts no catalog entry references.
type Sweeper struct {
	catalog   Catalog
	artifacts ArtifactStore
	logger    zerolog.Logger
	grace     time.Duration
	now       func() time.Time
}

func NewSweeper(catalog Catalog, artifacts ArtifactStore, logger zerolog.Logger, grace time.Duration, now func() time.Time) *Sweeper {
	if grace <= 0 {
		grace = DefaultSweepGrace
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Sweeper{
		catalog:   catalog,
		artifacts: artifacts,
		logger:    logger,
		grace:     grace,
		now:       now,
	}
}

// Sweep removes unreferenced artifacts older than the grace period. With
// dryRun set it only reports them.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	if s == nil || s.catalog == nil || s.artifacts == nil {
		return nil, fmt.Errorf("sweeper is not initialized")
	}

	referenced, err := s.referencedKeys(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := s.artifacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored artifacts: %w", err)
	}

	cutoff := s.now().Add(-s.grace)
	report := &SweepReport{Scanned: len(objects), Deleted: []string{}, DryRun: dryRun}
	candidates := make([]string, 0)
	for _, object := range objects {
		if _, err := artifact.FingerprintOf(object.Key); err != nil {
			continue
		}
		if _, ok := referenced[object.Key]; ok {
			continue
		}
		if object.ModifiedAt.After(cutoff) {
			continue
		}
		candidates = append(candidates, object.Key)
	}
	if len(candidates) == 0 {
		s.logFinished(report)
		return report, nil
	}

	// An insert may have adopted a candidate while the store was listed.
	referenced, err = s.referencedKeys(ctx)
	if err != nil {
		return report, err
	}
	for _, key := range candidates {
		if _, ok := referenced[key]; ok {
			continue
		}
		if !dryRun {
			if err := s.artifacts.Delete(ctx, key); err != nil {
				return report, fmt.Errorf("delete orphan %s: %w", key, err)
			}
		}
		report.Deleted = append(report.Deleted, key)
	}

	s.logFinished(report)
	return report, nil
}

func (s *Sweeper) referencedKeys(ctx context.Context) (map[string]struct{}, error) {
	keys, err := s.catalog.ListArtifactKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list referenced artifacts: %w", err)
	}
	referenced := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		referenced[key] = struct{}{}
	}
	return referenced, nil
}

func (s *Sweeper) logFinished(report *SweepReport) {
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("orphans", len(report.Deleted)).
		Bool("dry_run", report.DryRun).
		Msg("artifact sweep finished")
}

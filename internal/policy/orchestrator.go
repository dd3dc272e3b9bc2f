// Package policy deduplicates document summaries by content fingerprint and
// maintains per-user libraries of summarized documents.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"horse.fit/safeagree/internal/artifact"
	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/fingerprint"
	"horse.fit/safeagree/internal/langdetect"
	"horse.fit/safeagree/internal/summarizer"
)

const (
	// DefaultSummarizeTimeout bounds one gateway call.
	DefaultSummarizeTimeout = 90 * time.Second
	// DefaultHistoryLimit caps History when no limit is given.
	DefaultHistoryLimit = 50

	maxInsertAttempts = 3
)

// Deps wires the orchestrator's collaborators. Catalog, Artifacts,
// Normalizer and Summarizer are required.
type Deps struct {
	Catalog          Catalog
	Artifacts        ArtifactStore
	Normalizer       Normalizer
	Summarizer       summarizer.Summarizer
	Logger           zerolog.Logger
	SummarizeTimeout time.Duration

	// Optional hooks; nil selects the production behavior.
	Now            func() time.Time
	Hash           func(text string) fingerprint.Fingerprint
	DetectLanguage func(text string) string
	NewUUID        func() string
}

// Orchestrator decides cache hit or miss for a document and keeps exactly
// one catalog entry per fingerprint.
type Orchestrator struct {
	catalog    Catalog
	artifacts  ArtifactStore
	normalizer Normalizer
	summarizer summarizer.Summarizer
	logger     zerolog.Logger
	timeout    time.Duration

	now            func() time.Time
	hash           func(string) fingerprint.Fingerprint
	detectLanguage func(string) string
	newUUID        func() string

	flight singleflight.Group
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog is required")
	case deps.Artifacts == nil:
		return nil, fmt.Errorf("artifact store is required")
	case deps.Normalizer == nil:
		return nil, fmt.Errorf("normalizer is required")
	case deps.Summarizer == nil:
		return nil, fmt.Errorf("summarizer is required")
	}

	o := &Orchestrator{
		catalog:        deps.Catalog,
		artifacts:      deps.Artifacts,
		normalizer:     deps.Normalizer,
		summarizer:     deps.Summarizer,
		logger:         deps.Logger,
		timeout:        deps.SummarizeTimeout,
		now:            deps.Now,
		hash:           deps.Hash,
		detectLanguage: deps.DetectLanguage,
		newUUID:        deps.NewUUID,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultSummarizeTimeout
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.hash == nil {
		o.hash = fingerprint.Of
	}
	if o.detectLanguage == nil {
		o.detectLanguage = func(string) string { return langdetect.Undetermined }
	}
	if o.newUUID == nil {
		o.newUUID = uuid.NewString
	}
	return o, nil
}

// ProcessDocument normalizes the submission, serves or computes its summary,
// and links the resulting entry into the user's library.
func (o *Orchestrator) ProcessDocument(ctx context.Context, req ProcessRequest) (*Result, error) {
	if o == nil || o.catalog == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	text, err := o.normalizer.Normalize(ctx, req.Input)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	link := ""
	if req.Input.Kind == content.KindLink {
		link = strings.TrimSpace(req.Input.Link)
	}
	fp := o.hash(text)

	resolved, err := o.resolve(ctx, fp, pendingEntry{
		text:        text,
		companyName: ResolveCompanyName(req.CompanyName, link, req.FileName),
		link:        link,
	})
	if err != nil {
		return nil, err
	}

	result := *resolved
	if link != "" && result.Entry.Link() != link {
		// Joined another caller's resolution; record this caller's link too.
		at := o.now()
		if err := o.catalog.TouchEntry(ctx, result.Entry.ID, at, &link); err != nil {
			return nil, fmt.Errorf("%w: touch entry %d: %w", ErrStorageWriteFailed, result.Entry.ID, err)
		}
		result.Entry.LastProcessedAt = at
		result.Entry.SourceLink = &link
	}

	if err := o.catalog.UpsertAssociation(ctx, req.UserID, resolved.Entry.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("link entry %d to user %d: %w", resolved.Entry.ID, req.UserID, err)
		}
		return nil, fmt.Errorf("%w: link entry %d to user %d: %w", ErrStorageWriteFailed, resolved.Entry.ID, req.UserID, err)
	}

	return &result, nil
}

// GetEntry loads an entry with its artifact.
func (o *Orchestrator) GetEntry(ctx context.Context, entryID int64) (*EntryView, error) {
	if o == nil || o.catalog == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}

	entry, err := o.catalog.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", entryID, err)
	}
	art, err := o.loadArtifact(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &EntryView{Entry: *entry, Artifact: *art}, nil
}

// History lists all catalog entries, most recently processed first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]CatalogEntry, error) {
	if o == nil || o.catalog == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := o.catalog.ListEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

type pendingEntry struct {
	text        string
	companyName string
	link        string
}

// resolve collapses concurrent requests for one fingerprint into a single
// lookup-or-compute. Requests for other fingerprints proceed independently.
// The shared work is detached from every caller's cancellation and bounded
// by the summarize timeout; a caller whose context ends stops waiting
// without failing the others.
func (o *Orchestrator) resolve(ctx context.Context, fp fingerprint.Fingerprint, pending pendingEntry) (*Result, error) {
	detached := context.WithoutCancel(ctx)
	ch := o.flight.DoChan(fp.Hex(), func() (any, error) {
		return o.lookupOrCompute(detached, fp, pending)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			o.logger.Debug().Str("fingerprint", fp.Hex()).Msg("shared in-flight resolution")
		}
		return res.Val.(*Result), nil
	}
}

func (o *Orchestrator) lookupOrCompute(ctx context.Context, fp fingerprint.Fingerprint, pending pendingEntry) (*Result, error) {
	var fresh *SummaryArtifact
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		entry, err := o.catalog.FindByFingerprint(ctx, fp)
		switch {
		case err == nil:
			return o.serveHit(ctx, entry, pending.link)
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("look up catalog for %s: %w", fp.Hex(), err)
		}

		if fresh == nil {
			fresh, err = o.compute(ctx, fp, pending)
			if err != nil {
				return nil, err
			}
		}

		var sourceLink *string
		if pending.link != "" {
			link := pending.link
			sourceLink = &link
		}
		inserted, err := o.catalog.InsertEntry(ctx, NewCatalogEntry{
			UUID:        o.newUUID(),
			Fingerprint: fp,
			CompanyName: pending.companyName,
			SourceLink:  sourceLink,
			ArtifactKey: artifact.KeyFor(fp),
			Language:    fresh.Language,
			ProcessedAt: o.now(),
		})
		if err == nil {
			o.logger.Info().
				Str("fingerprint", fp.Hex()).
				Int64("entry_id", inserted.ID).
				Str("artifact_key", inserted.ArtifactKey).
				Msg("cataloged new summary")
			return &Result{Entry: *inserted, Artifact: *fresh}, nil
		}
		if !errors.Is(err, ErrUniquenessViolation) {
			return nil, fmt.Errorf("%w: insert catalog entry %s: %w", ErrStorageWriteFailed, fp.Hex(), err)
		}
		o.logger.Warn().
			Str("fingerprint", fp.Hex()).
			Int("attempt", attempt).
			Msg("lost catalog insert race, reconciling")
	}
	return nil, fmt.Errorf("%w: fingerprint %s still conflicting after %d attempts", ErrStorageWriteFailed, fp.Hex(), maxInsertAttempts)
}

func (o *Orchestrator) serveHit(ctx context.Context, entry *CatalogEntry, link string) (*Result, error) {
	at := o.now()
	var linkUpdate *string
	if link != "" && entry.Link() != link {
		linkUpdate = &link
	}
	if err := o.catalog.TouchEntry(ctx, entry.ID, at, linkUpdate); err != nil {
		return nil, fmt.Errorf("%w: touch entry %d: %w", ErrStorageWriteFailed, entry.ID, err)
	}

	touched := *entry
	touched.LastProcessedAt = at
	if linkUpdate != nil {
		touched.SourceLink = linkUpdate
	}

	art, err := o.loadArtifact(ctx, &touched)
	if err != nil {
		return nil, err
	}
	o.logger.Debug().
		Str("fingerprint", entry.Fingerprint.Hex()).
		Int64("entry_id", entry.ID).
		Msg("summary cache hit")
	return &Result{Entry: touched, Artifact: *art, Cached: true}, nil
}

// compute calls the gateway and persists the artifact. The catalog is not
// touched here.
func (o *Orchestrator) compute(ctx context.Context, fp fingerprint.Fingerprint, pending pendingEntry) (*SummaryArtifact, error) {
	language := o.detectLanguage(pending.text)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	summary, err := o.summarizer.Summarize(callCtx, summarizer.Request{
		Text:        pending.text,
		Language:    language,
		CompanyName: pending.companyName,
	})
	elapsed := time.Since(started)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			o.logger.Warn().Str("fingerprint", fp.Hex()).Dur("elapsed", elapsed).Msg("summarizer timed out")
			return nil, fmt.Errorf("%w: after %s: %w", ErrGatewayTimeout, elapsed.Round(time.Millisecond), err)
		}
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}
	if err := summarizer.Validate(summary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}

	packed := SummaryArtifact{
		Fingerprint: fp.Hex(),
		Sections:    summary.Sections,
		KeyPoints:   summary.KeyPoints,
		Sentiment:   summary.Sentiment,
		Language:    language,
		Summarizer:  o.summarizer.Name(),
		Model:       summarizer.ModelOf(o.summarizer),
		GeneratedAt: o.now(),
	}
	if packed.KeyPoints == nil {
		packed.KeyPoints = []string{}
	}
	body, err := json.Marshal(packed)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}

	key := artifact.KeyFor(fp)
	if err := o.artifacts.Put(ctx, key, body); err != nil {
		if !errors.Is(err, artifact.ErrExists) {
			return nil, fmt.Errorf("%w: put %s: %w", ErrStorageWriteFailed, key, err)
		}
		// Another writer published this key first; adopt its artifact. The
		// touch keeps an old orphan from being swept before the insert lands.
		if err := o.artifacts.Touch(ctx, key); err != nil {
			return nil, fmt.Errorf("%w: touch existing %s: %w", ErrStorageWriteFailed, key, err)
		}
		stored, loadErr := o.readArtifact(ctx, key)
		if loadErr != nil {
			return nil, fmt.Errorf("%w: adopt existing %s: %w", ErrStorageWriteFailed, key, loadErr)
		}
		packed = *stored
	}

	o.logger.Info().
		Str("fingerprint", fp.Hex()).
		Str("artifact_key", key).
		Str("summarizer", packed.Summarizer).
		Dur("elapsed", elapsed).
		Msg("summarized document")
	return &packed, nil
}

func (o *Orchestrator) loadArtifact(ctx context.Context, entry *CatalogEntry) (*SummaryArtifact, error) {
	art, err := o.readArtifact(ctx, entry.ArtifactKey)
	if err != nil {
		if errors.Is(err, ErrCacheCorruption) {
			o.logger.Error().
				Err(err).
				Int64("entry_id", entry.ID).
				Str("artifact_key", entry.ArtifactKey).
				Msg("catalog entry points at unreadable artifact")
			return nil, fmt.Errorf("entry %d: %w", entry.ID, err)
		}
		return nil, fmt.Errorf("load artifact for entry %d: %w", entry.ID, err)
	}
	return art, nil
}

func (o *Orchestrator) readArtifact(ctx context.Context, key string) (*SummaryArtifact, error) {
	body, err := o.artifacts.Get(ctx, key)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrCacheCorruption, err)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return decodeArtifact(key, body)
}

func decodeArtifact(key string, body []byte) (*SummaryArtifact, error) {
	if _, err := summarizer.DecodeSummary(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheCorruption, key, err)
	}
	var art SummaryArtifact
	if err := json.Unmarshal(body, &art); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheCorruption, key, err)
	}
	return &art, nil
}

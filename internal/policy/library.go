package policy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/safeagree/internal/content"
)

// DefaultImportConcurrency bounds parallel link processing during import.
const DefaultImportConcurrency = 4

// DocumentProcessor is the part of Orchestrator the library depends on.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, req ProcessRequest) (*Result, error)
}

type LibraryOptions struct {
	ImportConcurrency int
}

// Library manages user-to-entry associations.
type Library struct {
	catalog   Catalog
	processor DocumentProcessor
	logger    zerolog.Logger
	importMax int
}

func NewLibrary(catalog Catalog, processor DocumentProcessor, logger zerolog.Logger, opts LibraryOptions) *Library {
	importMax := opts.ImportConcurrency
	if importMax <= 0 {
		importMax = DefaultImportConcurrency
	}
	return &Library{
		catalog:   catalog,
		processor: processor,
		logger:    logger,
		importMax: importMax,
	}
}

// AddExisting links an existing entry into the user's library.
func (l *Library) AddExisting(ctx context.Context, userID, entryID int64) error {
	if l == nil || l.catalog == nil {
		return fmt.Errorf("library is not initialized")
	}
	if err := l.requireUser(ctx, userID); err != nil {
		return err
	}
	if _, err := l.catalog.GetEntry(ctx, entryID); err != nil {
		return fmt.Errorf("entry %d: %w", entryID, err)
	}
	if err := l.catalog.UpsertAssociation(ctx, userID, entryID); err != nil {
		return fmt.Errorf("link entry %d to user %d: %w", entryID, userID, err)
	}
	return nil
}

// List returns the user's library, most recently processed first.
func (l *Library) List(ctx context.Context, userID int64) ([]LibraryItem, error) {
	if l == nil || l.catalog == nil {
		return nil, fmt.Errorf("library is not initialized")
	}
	entries, err := l.catalog.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list library for user %d: %w", userID, err)
	}
	items := make([]LibraryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, LibraryItem{
			EntryID:         entry.ID,
			CompanyName:     entry.CompanyName,
			SourceLink:      entry.Link(),
			LastProcessedAt: entry.LastProcessedAt,
		})
	}
	return items, nil
}

// Remove unlinks an entry. The entry itself stays in the catalog.
func (l *Library) Remove(ctx context.Context, userID, entryID int64) (bool, error) {
	if l == nil || l.catalog == nil {
		return false, fmt.Errorf("library is not initialized")
	}
	removed, err := l.catalog.DeleteAssociation(ctx, userID, entryID)
	if err != nil {
		return false, fmt.Errorf("unlink entry %d from user %d: %w", entryID, userID, err)
	}
	return removed, nil
}

// RefreshAll reprocesses every linked entry that has a source link. When the
// content changed, the user's association moves to the new entry.
func (l *Library) RefreshAll(ctx context.Context, userID int64) (*RefreshReport, error) {
	if l == nil || l.catalog == nil || l.processor == nil {
		return nil, fmt.Errorf("library is not initialized")
	}
	if err := l.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	entries, err := l.catalog.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list library for user %d: %w", userID, err)
	}

	report := &RefreshReport{Items: make([]RefreshItem, 0, len(entries))}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Items = append(report.Items, l.refreshEntry(ctx, userID, entry))
	}

	report.Library, err = l.List(ctx, userID)
	if err != nil {
		return report, err
	}
	return report, nil
}

func (l *Library) refreshEntry(ctx context.Context, userID int64, entry CatalogEntry) RefreshItem {
	item := RefreshItem{EntryID: entry.ID, CompanyName: entry.CompanyName}
	link := strings.TrimSpace(entry.Link())
	if link == "" {
		item.Status = StatusSkipped
		item.Message = "entry has no source link"
		return item
	}

	res, err := l.processor.ProcessDocument(ctx, ProcessRequest{
		UserID:      userID,
		Input:       content.LinkInput(link),
		CompanyName: entry.CompanyName,
	})
	if err != nil {
		l.logger.Warn().Err(err).Int64("user_id", userID).Int64("entry_id", entry.ID).Msg("refresh failed")
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}

	if res.Entry.ID == entry.ID {
		item.Status = StatusUnchanged
		return item
	}

	item.Status = StatusUpdated
	item.NewEntryID = res.Entry.ID
	if _, err := l.catalog.DeleteAssociation(ctx, userID, entry.ID); err != nil {
		l.logger.Warn().Err(err).Int64("user_id", userID).Int64("entry_id", entry.ID).Msg("drop stale association failed")
		item.Message = fmt.Sprintf("new entry linked, old entry still linked: %v", err)
	}
	return item
}

// RefreshEveryone runs RefreshAll for every user owning a library. Per-user
// failures are logged and counted.
func (l *Library) RefreshEveryone(ctx context.Context) (refreshed int, failed int, err error) {
	if l == nil || l.catalog == nil {
		return 0, 0, fmt.Errorf("library is not initialized")
	}
	userIDs, err := l.catalog.ListUsersWithLibraries(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list library owners: %w", err)
	}
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return refreshed, failed, err
		}
		if _, err := l.RefreshAll(ctx, userID); err != nil {
			failed++
			l.logger.Error().Err(err).Int64("user_id", userID).Msg("scheduled refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

// ImportFromLinkList processes one link per line. Each line succeeds or fails
// on its own; results keep input order.
func (l *Library) ImportFromLinkList(ctx context.Context, userID int64, text string) (*ImportReport, error) {
	if l == nil || l.catalog == nil || l.processor == nil {
		return nil, fmt.Errorf("library is not initialized")
	}
	if err := l.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	results := parseLinkList(text)

	var group errgroup.Group
	group.SetLimit(l.importMax)
	for i := range results {
		if results[i].Status == StatusFailed {
			continue
		}
		group.Go(func() error {
			res, err := l.processor.ProcessDocument(ctx, ProcessRequest{
				UserID: userID,
				Input:  content.LinkInput(results[i].Link),
			})
			if err != nil {
				results[i].Status = StatusFailed
				results[i].Message = err.Error()
				return nil
			}
			results[i].Status = StatusSuccess
			results[i].EntryID = res.Entry.ID
			return nil
		})
	}
	_ = group.Wait()

	report := &ImportReport{Results: results}
	l.logger.Info().
		Int64("user_id", userID).
		Int("lines", len(results)).
		Int("succeeded", report.Succeeded()).
		Msg("imported link list")

	library, err := l.List(ctx, userID)
	if err != nil {
		return report, err
	}
	report.Library = library
	return report, nil
}

// Export returns the source links of the user's library in listing order.
func (l *Library) Export(ctx context.Context, userID int64) ([]string, error) {
	items, err := l.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(items))
	for _, item := range items {
		if item.SourceLink != "" {
			links = append(links, item.SourceLink)
		}
	}
	return links, nil
}

func (l *Library) requireUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	exists, err := l.catalog.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user %d: %w", userID, err)
	}
	if !exists {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

func parseLinkList(text string) []ImportResult {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	results := make([]ImportResult, 0, len(lines))
	for idx, line := range lines {
		link := strings.TrimSpace(line)
		if link == "" {
			continue
		}
		result := ImportResult{Line: idx + 1, Link: link}
		if err := validateLink(link); err != nil {
			result.Status = StatusFailed
			result.Message = err.Error()
		}
		results = append(results, result)
	}
	return results
}

func validateLink(link string) error {
	parsed, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: link must use http or https", ErrInvalidInput)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: link has no host", ErrInvalidInput)
	}
	return nil
}
